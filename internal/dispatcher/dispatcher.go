package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
	"git.home.luguber.info/inful/oxobuilder/internal/build/queue"
	"git.home.luguber.info/inful/oxobuilder/internal/console"
	"git.home.luguber.info/inful/oxobuilder/internal/events"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
	"git.home.luguber.info/inful/oxobuilder/internal/metrics"
	"git.home.luguber.info/inful/oxobuilder/internal/observability"
	"git.home.luguber.info/inful/oxobuilder/internal/scaffold"
	"git.home.luguber.info/inful/oxobuilder/internal/workspace"
)

// Scaffolder recreates the project layout in a workspace.
type Scaffolder interface {
	Scaffold(ctx context.Context, target scaffold.Target) (*scaffold.Result, error)
}

// BuildQueue accepts build requests.
type BuildQueue interface {
	Submit(req build.BuildRequest, lease queue.Releaser) (*queue.Ticket, error)
	Busy() bool
	Active() (*build.Job, bool)
	Last() (*build.Job, bool)
}

// Options wires a Dispatcher.
type Options struct {
	Log          *console.Log
	Workspace    *workspace.Workspace
	Scaffolder   Scaffolder
	Queue        BuildQueue
	Endpoint     string
	ArtifactPath string
	Recorder     metrics.Recorder
}

// Dispatcher interprets command lines. It is safe for concurrent use.
type Dispatcher struct {
	log          *console.Log
	ws           *workspace.Workspace
	scaffolder   Scaffolder
	queue        BuildQueue
	endpoint     atomic.Pointer[string]
	artifactPath string
	recorder     metrics.Recorder

	pending sync.WaitGroup
}

// New returns a dispatcher. Log defaults to a fresh console log.
func New(opts Options) (*Dispatcher, error) {
	if opts.Workspace == nil {
		return nil, ferrors.ValidationError("dispatcher requires a workspace").Build()
	}
	if opts.Scaffolder == nil || opts.Queue == nil {
		return nil, ferrors.ValidationError("dispatcher requires a scaffolder and a build queue").Build()
	}
	if strings.TrimSpace(opts.ArtifactPath) == "" {
		return nil, ferrors.ValidationError("dispatcher requires an artifact path").Build()
	}
	if opts.Log == nil {
		opts.Log = console.New(nil)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	d := &Dispatcher{
		log:          opts.Log,
		ws:           opts.Workspace,
		scaffolder:   opts.Scaffolder,
		queue:        opts.Queue,
		artifactPath: opts.ArtifactPath,
		recorder:     opts.Recorder,
	}
	d.SetEndpoint(opts.Endpoint)
	return d, nil
}

// SetEndpoint changes the remote build URL used by builds dispatched from now on.
func (d *Dispatcher) SetEndpoint(endpoint string) {
	d.endpoint.Store(&endpoint)
}

// Endpoint returns the current remote build URL.
func (d *Dispatcher) Endpoint() string {
	return *d.endpoint.Load()
}

// Log returns the console log the dispatcher writes to.
func (d *Dispatcher) Log() *console.Log { return d.log }

// Subscribe follows console log changes.
func (d *Dispatcher) Subscribe(buffer int) (<-chan events.LogEvent, func()) {
	return d.log.Subscribe(buffer)
}

// Snapshot returns the current console lines.
func (d *Dispatcher) Snapshot() []string { return d.log.Snapshot() }

// Wait blocks until every build accepted so far has appended its outcome.
func (d *Dispatcher) Wait() { d.pending.Wait() }

// Dispatch echoes raw and runs the matching command. A build returns as
// soon as it is queued. Blank input is echoed and reported as not found.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) {
	d.dispatch(ctx, raw, build.TriggerCommand)
}

// Trigger dispatches raw on behalf of a non-interactive source such as the
// scheduler. It behaves exactly like Dispatch apart from the recorded trigger.
func (d *Dispatcher) Trigger(ctx context.Context, raw string, trigger build.Trigger) {
	d.dispatch(ctx, raw, trigger)
}

func (d *Dispatcher) dispatch(ctx context.Context, raw string, trigger build.Trigger) {
	cmd := strings.ToLower(strings.TrimSpace(raw))
	ctx = observability.WithCommand(ctx, cmd)
	d.log.Append(ctx, PromptPrefix+raw)

	switch cmd {
	case CmdScaffold:
		d.scaffold(ctx)
	case CmdBuild:
		d.build(ctx, trigger)
	case CmdClear:
		d.log.Clear(ctx)
	case CmdHelp:
		for _, line := range helpLines {
			d.log.Append(ctx, line)
		}
	case CmdStatus:
		d.log.Append(ctx, d.status())
	default:
		observability.DebugContext(ctx, "Unknown command")
		d.log.Append(ctx, MsgNotFound+raw)
	}
}

func (d *Dispatcher) scaffold(ctx context.Context) {
	lease, err := d.ws.Acquire(opScaffold)
	if err != nil {
		d.recorder.IncRejected(opScaffold)
		observability.InfoContext(ctx, "Scaffold rejected", logfields.Error(err))
		if holder := leaseHolder(err); holder != opBuild {
			d.log.Append(ctx, fmt.Sprintf(msgBusyFormat, holder, "scaffold aborted"))
			return
		}
		d.log.Append(ctx, MsgScaffoldBusy)
		return
	}
	defer lease.Release()

	res, err := d.scaffolder.Scaffold(ctx, d.ws)
	if err != nil {
		observability.WarnContext(ctx, "Scaffold failed", logfields.Error(err))
		d.log.Append(ctx, MsgScaffoldAborted+detail(err))
		return
	}
	observability.InfoContext(ctx, "Workspace scaffolded", logfields.Path(res.Root))
	d.log.Append(ctx, MsgScaffoldDone+res.Root)
}

func (d *Dispatcher) build(ctx context.Context, trigger build.Trigger) {
	lease, err := d.ws.Acquire(opBuild)
	if err != nil {
		d.recorder.IncRejected(opBuild)
		observability.InfoContext(ctx, "Build rejected", logfields.Error(err))
		if holder := leaseHolder(err); holder != opBuild {
			d.log.Append(ctx, fmt.Sprintf(msgBusyFormat, holder, "build ignored"))
			return
		}
		d.log.Append(ctx, MsgBuildBusy)
		return
	}

	job := build.NewJob(trigger)
	jobCtx := observability.WithJobID(context.WithoutCancel(ctx), job.ID)
	req := build.BuildRequest{
		Job:          job,
		SourceRoot:   d.ws.Root(),
		ArchivePath:  d.ws.ArchivePath(),
		Endpoint:     d.Endpoint(),
		ArtifactPath: d.artifactPath,
		Progress:     d.log.Append,
	}

	d.pending.Add(1)
	ticket, err := d.queue.Submit(req, lease)
	if err != nil {
		d.pending.Done()
		if ferrors.HasCategory(err, ferrors.CategoryBusy) {
			d.log.Append(ctx, MsgBuildBusy)
			return
		}
		observability.ErrorContext(ctx, "Build submission failed", logfields.Error(err))
		d.log.Append(ctx, MsgQueueDown+detail(err))
		return
	}
	observability.InfoContext(jobCtx, "Build queued", logfields.Endpoint(req.Endpoint))

	// The worker appends the terminal line itself; only a job that never
	// reached a terminal state is reported here.
	go func() {
		defer d.pending.Done()
		_, err := ticket.Wait(jobCtx)
		if !job.State().IsTerminal() {
			d.log.Append(jobCtx, MsgBuildCanceled+detail(err))
		}
	}()
}

func (d *Dispatcher) status() string {
	var b strings.Builder
	if job, ok := d.queue.Active(); ok {
		fmt.Fprintf(&b, "System: build %s in progress (%s)", shortID(job.ID), job.State())
	} else if d.queue.Busy() {
		b.WriteString("System: build queued")
	} else {
		b.WriteString("System: idle")
	}
	if job, ok := d.queue.Last(); ok {
		fmt.Fprintf(&b, "; last build %s %s", shortID(job.ID), job.State())
		if a, ok := job.Artifact(); ok {
			fmt.Fprintf(&b, " (%s)", filepath.Base(a.Path))
		}
	}
	return b.String()
}

// leaseHolder names the operation holding the workspace, defaulting to build.
func leaseHolder(err error) string {
	if ce, ok := ferrors.AsClassified(err); ok {
		if h, ok := ce.Context().GetString("holder"); ok && h != "" {
			return h
		}
	}
	return opBuild
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func detail(err error) string {
	if err == nil {
		return "unknown error"
	}
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.Detail()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err.Error()
}
