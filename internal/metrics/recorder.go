package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// OutcomeLabel is the terminal state of a build job.
type OutcomeLabel string

const (
	OutcomeSucceeded        OutcomeLabel = "succeeded"
	OutcomeRemoteFailed     OutcomeLabel = "remote_failed"
	OutcomeNetworkFailed    OutcomeLabel = "network_failed"
	OutcomeFilesystemFailed OutcomeLabel = "filesystem_failed"
)

// Recorder defines observability hooks for build and stage metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome OutcomeLabel)
	IncRejected(command string)
	ObserveArchiveBytes(n int64)
	ObserveArtifactBytes(n int64)
	SetQueueBusy(busy bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(OutcomeLabel)               {}
func (NoopRecorder) IncRejected(string)                         {}
func (NoopRecorder) ObserveArchiveBytes(int64)                  {}
func (NoopRecorder) ObserveArtifactBytes(int64)                 {}
func (NoopRecorder) SetQueueBusy(bool)                          {}
