package build

import (
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

// ErrInvalidTransition is returned when a Job is asked to move to a state
// its current state cannot reach.
var ErrInvalidTransition = errors.New("oxobuilder: invalid job state transition")

// ErrorKind names the three ways a build attempt can fail.
type ErrorKind string

const (
	KindFilesystem  ErrorKind = "FilesystemError"
	KindNetwork     ErrorKind = "NetworkFailure"
	KindRemoteBuild ErrorKind = "RemoteBuildFailed"
)

// BuildError is the terminal failure of a Job.
type BuildError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // set for KindRemoteBuild
	Cause      error
}

func (e *BuildError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BuildError) Unwrap() error { return e.Cause }

// LogLine renders the single console line reported for the failure.
func (e *BuildError) LogLine() string {
	switch e.Kind {
	case KindRemoteBuild:
		return fmt.Sprintf("BUILD ERROR: remote build failed (HTTP %d). Check cloud logs.", e.StatusCode)
	case KindNetwork:
		return "NETWORK ERROR: " + e.Message
	default:
		return "FILESYSTEM ERROR: " + e.Message
	}
}

// State is the terminal job state for the failure kind.
func (e *BuildError) State() State {
	switch e.Kind {
	case KindRemoteBuild:
		return StateRemoteFailed
	case KindNetwork:
		return StateNetworkFailed
	default:
		return StateFilesystemFailed
	}
}

// Classified converts the failure into the shared error taxonomy.
func (e *BuildError) Classified() *ferrors.ClassifiedError {
	cat := ferrors.CategoryFileSystem
	switch e.Kind {
	case KindRemoteBuild:
		cat = ferrors.CategoryRemoteBuild
	case KindNetwork:
		cat = ferrors.CategoryNetwork
	}
	b := ferrors.NewError(cat, e.Message).WithCause(e.Cause)
	if e.StatusCode != 0 {
		b = b.WithContext("status", e.StatusCode)
	}
	return b.Build()
}

// NewFilesystemError wraps an archive or artifact I/O failure.
func NewFilesystemError(err error) *BuildError {
	return &BuildError{Kind: KindFilesystem, Message: describe(err), Cause: err}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *BuildError {
	return &BuildError{Kind: KindNetwork, Message: describe(err), Cause: err}
}

// NewRemoteBuildError records a non-success response from the build service.
func NewRemoteBuildError(status int, detail string) *BuildError {
	msg := fmt.Sprintf("remote build failed with HTTP %d", status)
	if detail != "" {
		msg += ": " + detail
	}
	return &BuildError{Kind: KindRemoteBuild, Message: msg, StatusCode: status}
}

// AsBuildError extracts a *BuildError from err.
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.Detail()
	}
	return err.Error()
}
