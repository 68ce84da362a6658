package build

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

func TestNewJob(t *testing.T) {
	a := NewJob("")
	b := NewJob(TriggerSchedule)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TriggerCommand, a.Trigger)
	assert.Equal(t, TriggerSchedule, b.Trigger)
	assert.Equal(t, StatePending, a.State())
	assert.Empty(t, a.TerminalLine())
}

func TestJob_StateMachine(t *testing.T) {
	tests := []struct {
		name    string
		path    []State
		wantErr bool
	}{
		{"success", []State{StateUploading, StateSucceeded}, false},
		{"remote failure", []State{StateUploading, StateRemoteFailed}, false},
		{"network failure", []State{StateUploading, StateNetworkFailed}, false},
		{"archive failure", []State{StateFilesystemFailed}, false},
		{"skip upload", []State{StateSucceeded}, true},
		{"leave terminal", []State{StateFilesystemFailed, StateUploading}, true},
		{"backwards", []State{StateUploading, StatePending}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(TriggerCommand)
			var err error
			for _, s := range tt.path {
				if err = job.Transition(s); err != nil {
					break
				}
			}
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.True(t, job.State().IsTerminal())
		})
	}
}

func TestJob_SucceedRecordsArtifact(t *testing.T) {
	job := NewJob(TriggerCommand)
	require.NoError(t, job.Transition(StateUploading))
	require.NoError(t, job.Succeed(Artifact{Path: "/tmp/out/OxoBuild.apk", Name: "OxoBuild.apk", Bytes: 42}))

	a, ok := job.Artifact()
	require.True(t, ok)
	assert.Equal(t, int64(42), a.Bytes)
	assert.Equal(t, "SUCCESS: APK generated at OxoBuild.apk", job.TerminalLine())
	assert.Nil(t, job.Err())

	// Terminal: a second outcome is rejected.
	require.ErrorIs(t, job.Fail(NewNetworkError(errors.New("late"))), ErrInvalidTransition)
}

func TestJob_FailSelectsStateFromKind(t *testing.T) {
	job := NewJob(TriggerCommand)
	require.NoError(t, job.Transition(StateUploading))
	require.NoError(t, job.Fail(NewRemoteBuildError(500, "")))

	assert.Equal(t, StateRemoteFailed, job.State())
	assert.Equal(t, "BUILD ERROR: remote build failed (HTTP 500). Check cloud logs.", job.TerminalLine())
}

func TestBuildError_LogLinesAreDistinct(t *testing.T) {
	remote := NewRemoteBuildError(502, "bad gateway")
	network := NewNetworkError(errors.New("dial tcp: connection refused"))
	fs := NewFilesystemError(ferrors.FileSystemError("open a.txt").WithCause(errors.New("permission denied")).Build())

	assert.Equal(t, "NETWORK ERROR: dial tcp: connection refused", network.LogLine())
	assert.Equal(t, "FILESYSTEM ERROR: open a.txt: permission denied", fs.LogLine())
	assert.NotEqual(t, remote.LogLine(), network.LogLine())

	assert.Equal(t, ferrors.CategoryRemoteBuild, remote.Classified().Category())
	assert.Equal(t, ferrors.CategoryNetwork, network.Classified().Category())
	assert.Equal(t, ferrors.CategoryFileSystem, fs.Classified().Category())

	var wrapped error = network
	got, ok := AsBuildError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, got.Kind)
}
