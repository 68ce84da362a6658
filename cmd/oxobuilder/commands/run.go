package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"git.home.luguber.info/inful/oxobuilder/internal/dispatcher"
	"git.home.luguber.info/inful/oxobuilder/internal/events"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Words []string `arg:"" name:"command" help:"Command line to dispatch, e.g. 'build' or 'create android folder'"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Start(ctx); err != nil {
		return err
	}

	return dispatchAndPrint(ctx, app, strings.Join(r.Words, " "), g)
}

// dispatchAndPrint runs raw, streams console lines to the output and returns
// the build error of a build it started, if any.
func dispatchAndPrint(ctx context.Context, app *App, raw string, g *Global) error {
	out := g.out()
	ch, unsubscribe := app.Dispatcher.Subscribe(256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range ch {
			if line, ok := evt.(events.LogAppended); ok {
				fmt.Fprintln(out, line.Line)
			}
		}
	}()

	_, hadLast := app.Queue.Last()
	app.Dispatcher.Dispatch(ctx, raw)
	app.Dispatcher.Wait()
	unsubscribe()
	wg.Wait()

	if strings.ToLower(strings.TrimSpace(raw)) != dispatcher.CmdBuild {
		return nil
	}
	job, ok := app.Queue.Last()
	if !ok || hadLast {
		return nil
	}
	if be := job.Err(); be != nil {
		return be.Classified()
	}
	return nil
}
