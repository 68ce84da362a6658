// Package schedule fires builds on a timetable through the dispatcher, so
// scheduled builds share the single-flight guard with interactive ones.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

// Triggerer runs a command on behalf of a non-interactive source.
type Triggerer interface {
	Trigger(ctx context.Context, raw string, trigger build.Trigger)
}

// Command is the line issued for every scheduled run.
const Command = "build"

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	target    Triggerer
	ctx       context.Context
}

// NewScheduler returns a stopped scheduler issuing builds to target.
func NewScheduler(target Triggerer) (*Scheduler, error) {
	if target == nil {
		return nil, ferrors.ValidationError("scheduler requires a trigger target").Build()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "create scheduler").Build()
	}
	return &Scheduler{scheduler: s, target: target, ctx: context.Background()}, nil
}

// ScheduleCron registers a build on a standard five-field cron expression.
func (s *Scheduler) ScheduleCron(expr string) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(s.fire),
		gocron.WithName("scheduled-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "invalid build schedule").
			WithContext("schedule", expr).
			Build()
	}
	return job.ID().String(), nil
}

// ScheduleEvery registers a build at a fixed interval.
func (s *Scheduler) ScheduleEvery(interval time.Duration) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.fire),
		gocron.WithName("periodic-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "invalid build interval").
			WithContext("interval", interval.String()).
			Build()
	}
	return job.ID().String(), nil
}

// Start begins firing. ctx is handed to every triggered command.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	slog.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running tasks.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	if err := s.scheduler.Shutdown(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "stop scheduler").Build()
	}
	return nil
}

// NextRun reports when the job with id fires next.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	for _, j := range s.scheduler.Jobs() {
		if j.ID().String() != id {
			continue
		}
		next, err := j.NextRun()
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func (s *Scheduler) fire() {
	if s.ctx.Err() != nil {
		return
	}
	slog.Info("Executing scheduled build")
	s.target.Trigger(s.ctx, Command, build.TriggerSchedule)
}
