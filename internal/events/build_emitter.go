package events

import (
	"context"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
)

// BuildEmitter republishes build lifecycle events on a Bus.
type BuildEmitter struct {
	bus *Bus
}

// NewBuildEmitter returns an emitter publishing to bus.
func NewBuildEmitter(bus *Bus) *BuildEmitter {
	return &BuildEmitter{bus: bus}
}

// EmitBuildStarted publishes BuildStarted.
func (e *BuildEmitter) EmitBuildStarted(ctx context.Context, job *build.Job, _ string) error {
	return e.bus.Publish(ctx, BuildStarted{
		JobID:     job.ID,
		Trigger:   string(job.Trigger),
		StartedAt: time.Now(),
	})
}

// EmitBuildFinished publishes BuildFinished.
func (e *BuildEmitter) EmitBuildFinished(ctx context.Context, job *build.Job, res *build.BuildResult) error {
	evt := BuildFinished{
		JobID:      job.ID,
		State:      string(job.State()),
		FinishedAt: time.Now(),
	}
	if res != nil {
		evt.Duration = res.Duration
	}
	if a, ok := job.Artifact(); ok {
		evt.ArtifactPath = a.Path
		evt.Bytes = a.Bytes
	}
	if be := job.Err(); be != nil {
		evt.Kind = string(be.Kind)
		evt.Message = be.Message
	}
	return e.bus.Publish(context.WithoutCancel(ctx), evt)
}
