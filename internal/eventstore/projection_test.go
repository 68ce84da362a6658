package eventstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
)

func runJob(t *testing.T, em *Emitter, outcome func(*build.Job)) *build.Job {
	t.Helper()
	job := build.NewJob(build.TriggerCommand)
	require.NoError(t, em.EmitBuildStarted(t.Context(), job, "worker-0"))
	em.ObserveStage(t.Context(), job, build.StageArchive, 20*time.Millisecond, nil)
	require.NoError(t, job.Transition(build.StateUploading))
	outcome(job)
	require.NoError(t, em.EmitBuildFinished(t.Context(), job, &build.BuildResult{Duration: 1500 * time.Millisecond}))
	return job
}

func TestEmitter_ProjectsSuccessAndFailure(t *testing.T) {
	store := newMemoryStore(t)
	proj := NewBuildHistoryProjection(store, 10)
	em := NewEmitter(store, proj)

	ok := runJob(t, em, func(j *build.Job) {
		require.NoError(t, j.Succeed(build.Artifact{Path: "/out/OxoBuild.apk", Name: "OxoBuild.apk", Bytes: 99}))
	})
	failed := runJob(t, em, func(j *build.Job) {
		require.NoError(t, j.Fail(build.NewRemoteBuildError(500, "")))
	})

	history := proj.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, failed.ID, history[0].BuildID)
	assert.Equal(t, string(build.StateRemoteFailed), history[0].Status)
	assert.Equal(t, 500, history[0].StatusCode)
	assert.Equal(t, string(build.KindRemoteBuild), history[0].ErrorKind)

	summary, found := proj.GetBuild(ok.ID)
	require.True(t, found)
	assert.Equal(t, string(build.StateSucceeded), summary.Status)
	assert.Equal(t, int64(99), summary.ArtifactBytes)
	assert.Equal(t, int64(20), summary.Stages[build.StageArchive])
	assert.Equal(t, 1500*time.Millisecond, summary.Duration)
	assert.Equal(t, "command", summary.Trigger)

	_, active := proj.GetActiveBuild()
	assert.False(t, active)
}

func TestProjection_RebuildMatchesLiveView(t *testing.T) {
	store := newMemoryStore(t)
	em := NewEmitter(store, nil)
	job := runJob(t, em, func(j *build.Job) {
		require.NoError(t, j.Fail(build.NewNetworkError(errors.New("connection refused"))))
	})

	proj := NewBuildHistoryProjection(store, 10)
	require.NoError(t, proj.Rebuild(t.Context()))
	assert.False(t, proj.LastSyncTime().IsZero())

	last, ok := proj.GetLastCompletedBuild()
	require.True(t, ok)
	assert.Equal(t, job.ID, last.BuildID)
	assert.Equal(t, string(build.StateNetworkFailed), last.Status)
	assert.Equal(t, "connection refused", last.ErrorMessage)
}

func TestProjection_ActiveBuildAndLimit(t *testing.T) {
	store := newMemoryStore(t)
	proj := NewBuildHistoryProjection(store, 1)
	em := NewEmitter(store, proj)

	for range 3 {
		runJob(t, em, func(j *build.Job) {
			require.NoError(t, j.Succeed(build.Artifact{Name: "OxoBuild.apk"}))
		})
	}
	assert.Len(t, proj.GetHistory(), 1)

	running := build.NewJob(build.TriggerSchedule)
	require.NoError(t, em.EmitBuildStarted(t.Context(), running, "worker-0"))
	active, ok := proj.GetActiveBuild()
	require.True(t, ok)
	assert.Equal(t, running.ID, active.BuildID)
	assert.Equal(t, "schedule", active.Trigger)
}
