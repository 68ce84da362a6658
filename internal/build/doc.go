// Package build models one remote build submission and runs it.
//
// A Job moves through a one-directional state machine:
//
//	pending → uploading → succeeded | remote_failed | network_failed
//	pending → filesystem_failed
//
// Terminal states are final and there is no retry; a new attempt is a new
// Job. DefaultBuildService executes the archive and submit stages for a Job
// and reports progress through a callback so the caller decides where user
// facing lines go.
package build
