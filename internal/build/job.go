package build

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a Job lifecycle state.
type State string

const (
	StatePending          State = "pending"
	StateUploading        State = "uploading"
	StateSucceeded        State = "succeeded"
	StateRemoteFailed     State = "remote_failed"
	StateNetworkFailed    State = "network_failed"
	StateFilesystemFailed State = "filesystem_failed"
)

// Writing the downloaded artifact can fail after the upload started, hence
// uploading → filesystem_failed.
var transitions = map[State][]State{
	StatePending:   {StateUploading, StateFilesystemFailed},
	StateUploading: {StateSucceeded, StateRemoteFailed, StateNetworkFailed, StateFilesystemFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s != StatePending && s != StateUploading
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	return slices.Contains(transitions[s], next)
}

// Trigger says what started a job.
type Trigger string

const (
	TriggerCommand  Trigger = "command"
	TriggerSchedule Trigger = "schedule"
)

// Artifact is the binary returned by a successful remote build.
type Artifact struct {
	Path  string
	Name  string
	Bytes int64
}

// Job is one build submission attempt. It is safe for concurrent use.
type Job struct {
	ID        string
	Trigger   Trigger
	CreatedAt time.Time

	mu          sync.RWMutex
	state       State
	archivePath string
	artifact    *Artifact
	err         *BuildError
}

// NewJob creates a pending job with a fresh UUID.
func NewJob(trigger Trigger) *Job {
	if trigger == "" {
		trigger = TriggerCommand
	}
	return &Job{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		CreatedAt: time.Now(),
		state:     StatePending,
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Transition moves the job to next, rejecting moves the state machine forbids.
func (j *Job) Transition(next State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(next)
}

func (j *Job) transitionLocked(next State) error {
	if !j.state.CanTransition(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, j.state, next)
	}
	j.state = next
	return nil
}

// SetArchivePath records where the job's bundle was staged.
func (j *Job) SetArchivePath(p string) {
	j.mu.Lock()
	j.archivePath = p
	j.mu.Unlock()
}

// ArchivePath returns the staged bundle path, if any.
func (j *Job) ArchivePath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.archivePath
}

// Succeed stores the artifact and moves to succeeded.
func (j *Job) Succeed(a Artifact) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StateSucceeded); err != nil {
		return err
	}
	j.artifact = &a
	return nil
}

// Fail stores be and moves to the matching failed state.
func (j *Job) Fail(be *BuildError) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(be.State()); err != nil {
		return err
	}
	j.err = be
	return nil
}

// Artifact returns the downloaded artifact once the job succeeded.
func (j *Job) Artifact() (Artifact, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.artifact == nil {
		return Artifact{}, false
	}
	return *j.artifact, true
}

// Err returns the terminal failure, or nil.
func (j *Job) Err() *BuildError {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// TerminalLine renders the one console line that reports the job outcome.
// It is empty until the job is terminal.
func (j *Job) TerminalLine() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch {
	case j.artifact != nil:
		return "SUCCESS: APK generated at " + j.artifact.Name
	case j.err != nil:
		return j.err.LogLine()
	default:
		return ""
	}
}
