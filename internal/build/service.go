package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/foundation"
)

// BuildService is the canonical interface for executing a build job.
// The CLI, the interactive shell and scheduled triggers all route through it.
type BuildService interface {
	// Run executes archive → submit → materialize for req.Job and drives the
	// job to a terminal state. The returned error is the job's BuildError.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// ProgressFunc receives user-facing stage notices in order.
type ProgressFunc func(ctx context.Context, line string)

// BuildRequest contains all inputs for a single build.
type BuildRequest struct {
	Job *Job

	// SourceRoot is the workspace directory to archive.
	SourceRoot string

	// ArchivePath is where the bundle is staged.
	ArchivePath string

	// Endpoint is the remote build URL.
	Endpoint string

	// ArtifactPath is where the downloaded binary is written.
	ArtifactPath string

	// Progress is optional. It receives the stage notices and, from the
	// queue worker, the job's terminal line.
	Progress ProgressFunc
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	JobID     string
	State     State
	Artifact  *Artifact
	Err       *BuildError
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Submitter uploads an archive to the remote build service.
// internal/remote provides the HTTP implementation.
type Submitter interface {
	Submit(ctx context.Context, archivePath, endpoint, artifactPath string) foundation.Result[Artifact, *BuildError]
}
