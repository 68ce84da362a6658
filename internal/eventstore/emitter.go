package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// Emitter persists build lifecycle events and keeps a projection current.
type Emitter struct {
	store      Store
	projection *BuildHistoryProjection
}

// NewEmitter returns an emitter writing to store. projection may be nil.
func NewEmitter(store Store, projection *BuildHistoryProjection) *Emitter {
	return &Emitter{store: store, projection: projection}
}

// EmitBuildStarted records that a worker picked up job.
func (e *Emitter) EmitBuildStarted(ctx context.Context, job *build.Job, workerID string) error {
	evt, err := NewBuildStarted(job.ID, BuildStartedPayload{
		Trigger:  string(job.Trigger),
		WorkerID: workerID,
	})
	if err != nil {
		return err
	}
	return e.append(ctx, evt, map[string]string{"worker_id": workerID})
}

// ObserveStage records a finished pipeline stage. Its signature matches
// build.StageObserver; failures are logged, not returned.
func (e *Emitter) ObserveStage(ctx context.Context, job *build.Job, stage string, d time.Duration, stageErr error) {
	evt, err := NewStageCompleted(job.ID, stage, d, stageErr)
	if err == nil {
		err = e.append(ctx, evt, nil)
	}
	if err != nil {
		slog.Warn("Failed to record stage", logfields.JobID(job.ID), logfields.Stage(stage), logfields.Error(err))
	}
}

// EmitBuildFinished records the terminal state of job.
func (e *Emitter) EmitBuildFinished(ctx context.Context, job *build.Job, res *build.BuildResult) error {
	p := BuildFinishedPayload{State: string(job.State())}
	if res != nil {
		p.DurationMS = res.Duration.Milliseconds()
	}
	if a, ok := job.Artifact(); ok {
		p.ArtifactPath = a.Path
		p.ArtifactBytes = a.Bytes
	}
	if be := job.Err(); be != nil {
		p.Kind = string(be.Kind)
		p.Message = be.Message
		p.StatusCode = be.StatusCode
	}
	evt, err := NewBuildFinished(job.ID, p)
	if err != nil {
		return err
	}
	return e.append(ctx, evt, nil)
}

func (e *Emitter) append(ctx context.Context, evt *Record, metadata map[string]string) error {
	// Events are history; they are written even when the job context was canceled.
	ctx = context.WithoutCancel(ctx)
	if err := e.store.Append(ctx, evt.BuildID(), evt.Type(), evt.Payload(), metadata); err != nil {
		return err
	}
	if e.projection != nil {
		e.projection.Apply(evt)
	}
	return nil
}
