// Package dispatcher maps typed command lines onto oxobuilder operations.
//
// Every dispatched line is echoed to the console log, then matched
// case-insensitively against a fixed vocabulary. Scaffolding runs inline;
// builds are handed to the build queue and their outcome is appended to the
// log once the job is terminal. Builds and scaffolds share one workspace
// lease, so at most one of them touches the workspace at a time and extra
// requests are rejected with a console line.
package dispatcher
