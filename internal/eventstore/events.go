package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

// Event type names as stored in the events table.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeStageCompleted = "StageCompleted"
	TypeBuildFinished  = "BuildFinished"
)

// BuildStartedPayload is recorded when the worker picks up a job.
type BuildStartedPayload struct {
	Trigger  string `json:"trigger"`
	WorkerID string `json:"worker_id"`
	Endpoint string `json:"endpoint,omitempty"`
}

// StageCompletedPayload is recorded after each pipeline stage.
type StageCompletedPayload struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// BuildFinishedPayload is recorded once a job reaches a terminal state.
type BuildFinishedPayload struct {
	State         string `json:"state"`
	Kind          string `json:"kind,omitempty"`
	Message       string `json:"message,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
	ArtifactPath  string `json:"artifact_path,omitempty"`
	ArtifactBytes int64  `json:"artifact_bytes,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID string, p BuildStartedPayload) (*Record, error) {
	return newEvent(buildID, TypeBuildStarted, p)
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(buildID string, stage string, d time.Duration, stageErr error) (*Record, error) {
	p := StageCompletedPayload{Stage: stage, DurationMS: d.Milliseconds()}
	if stageErr != nil {
		p.Error = stageErr.Error()
	}
	return newEvent(buildID, TypeStageCompleted, p)
}

// NewBuildFinished creates a BuildFinished event.
func NewBuildFinished(buildID string, p BuildFinishedPayload) (*Record, error) {
	return newEvent(buildID, TypeBuildFinished, p)
}

func newEvent(buildID, eventType string, v any) (*Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal " + eventType + " payload").
			WithCause(err).
			WithContext("build_id", buildID).
			Build()
	}
	return &Record{
		JobID: buildID,
		Kind:  eventType,
		At:    time.Now(),
		Data:  payload,
	}, nil
}
