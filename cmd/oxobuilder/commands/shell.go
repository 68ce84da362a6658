package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"git.home.luguber.info/inful/oxobuilder/internal/config"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
	"git.home.luguber.info/inful/oxobuilder/internal/tui"
)

// ShellCmd implements the 'shell' command.
type ShellCmd struct {
	LogFile string `name:"log-file" help:"Operational log file while the terminal owns the screen (default: next to the history database)"`
}

func (s *ShellCmd) Run(_ *Global, root *CLI) error {
	cfg, found, err := root.loadConfig()
	if err != nil {
		return err
	}

	logPath := s.LogFile
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(cfg.History.Path), "oxobuilder.log")
	}
	closeLog, err := redirectLogs(logPath, root.level())
	if err != nil {
		return err
	}
	defer closeLog()

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

	if found {
		w, err := config.NewWatcher(root.Config, 0, func(_ context.Context, next *config.Config) {
			if next.Remote.Endpoint != app.Dispatcher.Endpoint() {
				slog.Info("Remote endpoint changed", logfields.Endpoint(next.Remote.Endpoint))
				app.Dispatcher.SetEndpoint(next.Remote.Endpoint)
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			slog.Warn("Configuration reload disabled", logfields.Error(err))
		} else {
			defer w.Stop()
		}
	}

	return tui.Run(ctx, app.Dispatcher, app.Bus)
}

// redirectLogs sends slog output to path so it does not corrupt the terminal.
func redirectLogs(path string, level slog.Level) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create log directory").
			WithContext("path", path).
			Build()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "open log file").
			WithContext("path", path).
			Build()
	}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return func() {
		slog.SetDefault(prev)
		_ = f.Close()
	}, nil
}
