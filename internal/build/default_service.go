package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/archive"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
	"git.home.luguber.info/inful/oxobuilder/internal/metrics"
	"git.home.luguber.info/inful/oxobuilder/internal/observability"
)

// Stage names used for logging, metrics and build history.
const (
	StageArchive = "archive"
	StageSubmit  = "submit"
)

// Stage notices shown to the user, in order.
const (
	NoticeCompressing = "System: Compressing project..."
	NoticeSending     = "System: Sending to Render Cloud..."
)

// ArchiveFunc stages a bundle of sourceRoot at destination.
type ArchiveFunc func(ctx context.Context, sourceRoot, destination string) (*archive.Archive, error)

// StageObserver is told when each stage ends. Used for build history.
type StageObserver func(ctx context.Context, job *Job, stage string, d time.Duration, err error)

// DefaultBuildService is the standard implementation of BuildService.
// It runs archive → submit and drives the job's state machine.
type DefaultBuildService struct {
	archiver  ArchiveFunc
	submitter Submitter
	recorder  metrics.Recorder
	observer  StageObserver
}

// NewBuildService creates a DefaultBuildService. The submitter is injected
// to keep this package free of transport code.
func NewBuildService(submitter Submitter) *DefaultBuildService {
	return &DefaultBuildService{
		archiver:  archive.Create,
		submitter: submitter,
		recorder:  metrics.NoopRecorder{},
	}
}

// WithArchiver replaces the archive step (for testing).
func (s *DefaultBuildService) WithArchiver(fn ArchiveFunc) *DefaultBuildService {
	s.archiver = fn
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithStageObserver registers a callback invoked after every stage.
func (s *DefaultBuildService) WithStageObserver(o StageObserver) *DefaultBuildService {
	s.observer = o
	return s
}

// Run executes the build pipeline for req.Job.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if req.Job == nil {
		return nil, ferrors.ValidationError("build request has no job").Build()
	}
	if s.submitter == nil {
		return nil, ferrors.InternalError("build service has no submitter").Build()
	}

	job := req.Job
	startTime := time.Now()
	ctx = observability.WithJobID(ctx, job.ID)
	progress := req.Progress
	if progress == nil {
		progress = func(context.Context, string) {}
	}

	// Stage 1: archive
	stageCtx := observability.WithStage(ctx, StageArchive)
	progress(stageCtx, NoticeCompressing)
	stageStart := time.Now()
	bundle, err := s.archiver(stageCtx, req.SourceRoot, req.ArchivePath)
	s.finishStage(stageCtx, job, StageArchive, time.Since(stageStart), err)
	if err != nil {
		be := NewFilesystemError(err)
		return s.fail(ctx, job, be, startTime), be
	}
	job.SetArchivePath(bundle.Path)
	s.recorder.ObserveArchiveBytes(bundle.Bytes)
	observability.DebugContext(stageCtx, "Workspace archived",
		logfields.Path(bundle.Path),
		logfields.Entries(len(bundle.Entries)),
		logfields.Bytes(bundle.Bytes))

	// Stage 2: submit
	stageCtx = observability.WithStage(ctx, StageSubmit)
	if err := job.Transition(StateUploading); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "start upload").Build()
	}
	progress(stageCtx, NoticeSending)
	stageStart = time.Now()
	res := s.submitter.Submit(stageCtx, bundle.Path, req.Endpoint, req.ArtifactPath)
	artifact, be := res.ToTuple()
	if res.IsErr() {
		s.finishStage(stageCtx, job, StageSubmit, time.Since(stageStart), be)
		return s.fail(ctx, job, be, startTime), be
	}
	s.finishStage(stageCtx, job, StageSubmit, time.Since(stageStart), nil)

	if err := job.Succeed(artifact); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "complete job").Build()
	}
	s.recorder.ObserveArtifactBytes(artifact.Bytes)
	s.recorder.IncBuildOutcome(metrics.OutcomeSucceeded)

	result := s.result(job, startTime)
	result.Artifact = &artifact
	s.recorder.ObserveBuildDuration(result.Duration)
	observability.InfoContext(ctx, "Build succeeded",
		logfields.Path(artifact.Path),
		logfields.Bytes(artifact.Bytes),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

func (s *DefaultBuildService) finishStage(ctx context.Context, job *Job, stage string, d time.Duration, err error) {
	s.recorder.ObserveStageDuration(stage, d)
	switch {
	case err == nil:
		s.recorder.IncStageResult(stage, metrics.ResultSuccess)
	case ctx.Err() != nil:
		s.recorder.IncStageResult(stage, metrics.ResultCanceled)
	default:
		s.recorder.IncStageResult(stage, metrics.ResultFailed)
	}
	if s.observer != nil {
		s.observer(ctx, job, stage, d, err)
	}
}

func (s *DefaultBuildService) fail(ctx context.Context, job *Job, be *BuildError, startTime time.Time) *BuildResult {
	if err := job.Fail(be); err != nil {
		observability.ErrorContext(ctx, "Job state rejected failure", logfields.Error(err))
	}
	s.recorder.IncBuildOutcome(outcomeFor(be.State()))
	result := s.result(job, startTime)
	result.Err = be
	s.recorder.ObserveBuildDuration(result.Duration)
	observability.WarnContext(ctx, "Build failed",
		logfields.Kind(string(be.Kind)),
		logfields.Error(be),
		logfields.Status(be.StatusCode))
	return result
}

func (s *DefaultBuildService) result(job *Job, startTime time.Time) *BuildResult {
	end := time.Now()
	return &BuildResult{
		JobID:     job.ID,
		State:     job.State(),
		StartTime: startTime,
		EndTime:   end,
		Duration:  end.Sub(startTime),
	}
}

func outcomeFor(s State) metrics.OutcomeLabel {
	switch s {
	case StateSucceeded:
		return metrics.OutcomeSucceeded
	case StateRemoteFailed:
		return metrics.OutcomeRemoteFailed
	case StateNetworkFailed:
		return metrics.OutcomeNetworkFailed
	default:
		return metrics.OutcomeFilesystemFailed
	}
}
