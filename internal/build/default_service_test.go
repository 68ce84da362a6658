package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/oxobuilder/internal/archive"
	"git.home.luguber.info/inful/oxobuilder/internal/foundation"
)

type fakeSubmitter struct {
	result foundation.Result[Artifact, *BuildError]
	calls  int
	seen   string
}

func (f *fakeSubmitter) Submit(_ context.Context, archivePath, _, _ string) foundation.Result[Artifact, *BuildError] {
	f.calls++
	f.seen = archivePath
	return f.result
}

type progressLog struct {
	mu    sync.Mutex
	lines []string
}

func (p *progressLog) add(_ context.Context, line string) {
	p.mu.Lock()
	p.lines = append(p.lines, line)
	p.mu.Unlock()
}

func newRequest(t *testing.T, job *Job, progress ProgressFunc) BuildRequest {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "build.gradle"), []byte("// root"), 0o600))
	out := t.TempDir()
	return BuildRequest{
		Job:          job,
		SourceRoot:   src,
		ArchivePath:  filepath.Join(out, "cache", "oxo_bundle.zip"),
		Endpoint:     "http://example.invalid/build",
		ArtifactPath: filepath.Join(out, "OxoBuild.apk"),
		Progress:     progress,
	}
}

func TestDefaultBuildService_Success(t *testing.T) {
	sub := &fakeSubmitter{result: foundation.Ok[Artifact, *BuildError](Artifact{Path: "/x/OxoBuild.apk", Name: "OxoBuild.apk", Bytes: 7})}
	var stages []string
	svc := NewBuildService(sub).WithStageObserver(func(_ context.Context, _ *Job, stage string, _ time.Duration, err error) {
		assert.NoError(t, err)
		stages = append(stages, stage)
	})
	progress := &progressLog{}
	job := NewJob(TriggerCommand)
	req := newRequest(t, job, progress.add)

	res, err := svc.Run(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, "OxoBuild.apk", res.Artifact.Name)
	assert.Equal(t, req.ArchivePath, sub.seen)
	assert.Equal(t, req.ArchivePath, job.ArchivePath())
	assert.Equal(t, []string{NoticeCompressing, NoticeSending}, progress.lines)
	assert.Equal(t, []string{StageArchive, StageSubmit}, stages)
	assert.Equal(t, "SUCCESS: APK generated at OxoBuild.apk", job.TerminalLine())
}

func TestDefaultBuildService_RemoteFailure(t *testing.T) {
	sub := &fakeSubmitter{result: foundation.Err[Artifact](NewRemoteBuildError(500, ""))}
	job := NewJob(TriggerCommand)

	res, err := NewBuildService(sub).Run(t.Context(), newRequest(t, job, nil))
	require.Error(t, err)
	be, ok := AsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, KindRemoteBuild, be.Kind)
	assert.Equal(t, StateRemoteFailed, res.State)
	assert.Equal(t, StateRemoteFailed, job.State())
}

func TestDefaultBuildService_ArchiveFailureSkipsSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := NewBuildService(sub).WithArchiver(func(context.Context, string, string) (*archive.Archive, error) {
		return nil, errors.New("disk full")
	})
	progress := &progressLog{}
	job := NewJob(TriggerCommand)

	res, err := svc.Run(t.Context(), newRequest(t, job, progress.add))
	require.Error(t, err)
	assert.Equal(t, StateFilesystemFailed, res.State)
	assert.Equal(t, 0, sub.calls)
	assert.Equal(t, []string{NoticeCompressing}, progress.lines)
	assert.Equal(t, "FILESYSTEM ERROR: disk full", job.TerminalLine())
}

func TestDefaultBuildService_RejectsMissingJob(t *testing.T) {
	_, err := NewBuildService(&fakeSubmitter{}).Run(t.Context(), BuildRequest{})
	require.Error(t, err)
}
