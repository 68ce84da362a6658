package commands

import (
	"context"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
	"git.home.luguber.info/inful/oxobuilder/internal/build/queue"
	"git.home.luguber.info/inful/oxobuilder/internal/config"
	"git.home.luguber.info/inful/oxobuilder/internal/console"
	"git.home.luguber.info/inful/oxobuilder/internal/dispatcher"
	"git.home.luguber.info/inful/oxobuilder/internal/events"
	"git.home.luguber.info/inful/oxobuilder/internal/eventstore"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
	"git.home.luguber.info/inful/oxobuilder/internal/metrics"
	"git.home.luguber.info/inful/oxobuilder/internal/notify"
	"git.home.luguber.info/inful/oxobuilder/internal/remote"
	"git.home.luguber.info/inful/oxobuilder/internal/scaffold"
	"git.home.luguber.info/inful/oxobuilder/internal/schedule"
	"git.home.luguber.info/inful/oxobuilder/internal/workspace"
)

// historySize bounds the in-memory build history projection.
const historySize = 100

// App is the wired pipeline shared by the shell and run commands.
type App struct {
	Config     *config.Config
	Bus        *events.Bus
	Workspace  *workspace.Workspace
	Queue      *queue.BuildQueue
	Dispatcher *dispatcher.Dispatcher
	Registry   *prom.Registry
	History    *eventstore.BuildHistoryProjection

	store     *eventstore.SQLiteStore
	notifier  *notify.Notifier
	scheduler *schedule.Scheduler
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewApp wires every component from cfg. Nothing runs until Start.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Bus: events.NewBus(), Registry: prom.NewRegistry()}
	recorder := metrics.NewPrometheusRecorder(a.Registry)

	ws, err := workspace.New(cfg.Workspace.Root, cfg.Workspace.CacheDir)
	if err != nil {
		return nil, err
	}
	a.Workspace = ws

	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.History = eventstore.NewBuildHistoryProjection(store, historySize)
	if err := a.History.Rebuild(ctx); err != nil {
		slog.Warn("Build history could not be loaded", logfields.Path(cfg.History.Path), logfields.Error(err))
	}
	recordHistory := eventstore.NewEmitter(store, a.History)

	scaffolder, err := scaffold.New(scaffold.DefaultProject())
	if err != nil {
		a.Close()
		return nil, err
	}

	service := build.NewBuildService(remote.NewClient(cfg.Remote.Timeout)).
		WithRecorder(recorder).
		WithStageObserver(recordHistory.ObserveStage)

	a.Queue = queue.NewBuildQueue(1, service)
	a.Queue.SetRecorder(recorder)
	a.Queue.SetEventEmitter(queue.Fanout{recordHistory, events.NewBuildEmitter(a.Bus)})

	a.Dispatcher, err = dispatcher.New(dispatcher.Options{
		Log:          console.New(a.Bus),
		Workspace:    ws,
		Scaffolder:   scaffolder,
		Queue:        a.Queue,
		Endpoint:     cfg.Remote.Endpoint,
		ArtifactPath: cfg.ArtifactPath(),
		Recorder:     recorder,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Start launches the queue worker and the optional integrations.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.Queue.Start(ctx)

	if addr := a.Config.Metrics.Address; addr != "" {
		a.done = make(chan struct{})
		go func() {
			defer close(a.done)
			if err := metrics.Serve(ctx, addr, a.Registry); err != nil {
				slog.Error("Metrics endpoint failed", logfields.Endpoint(addr), logfields.Error(err))
			}
		}()
	}

	if url := a.Config.Notify.NATSURL; url != "" {
		n, err := notify.Connect(url, a.Config.Notify.Subject)
		if err != nil {
			slog.Warn("Build notifications disabled", logfields.Error(err))
		} else {
			a.notifier = n
			n.Start(ctx, a.Bus)
		}
	}

	return a.startScheduler(ctx)
}

func (a *App) startScheduler(ctx context.Context) error {
	expr, interval := a.Config.Build.Schedule, a.Config.Build.Interval
	if expr == "" && interval <= 0 {
		return nil
	}
	s, err := schedule.NewScheduler(a.Dispatcher)
	if err != nil {
		return err
	}
	var id string
	if expr != "" {
		id, err = s.ScheduleCron(expr)
	} else {
		id, err = s.ScheduleEvery(interval)
	}
	if err != nil {
		return err
	}
	a.scheduler = s
	s.Start(ctx)
	if next, ok := s.NextRun(id); ok {
		slog.Info("Scheduled builds enabled", slog.Time("next_run", next))
	}
	return nil
}

// Close stops everything started and releases the workspace.
func (a *App) Close() {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			slog.Warn("Scheduler stop failed", logfields.Error(err))
		}
	}
	if a.Queue != nil {
		a.Queue.Stop(context.Background())
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	if a.notifier != nil {
		a.notifier.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.done != nil {
		<-a.done
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("History store close failed", logfields.Error(err))
		}
	}
	if a.Workspace != nil {
		_ = a.Workspace.Close()
	}
	a.Bus.Close()
}
