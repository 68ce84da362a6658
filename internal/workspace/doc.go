// Package workspace owns the local project directory that oxobuilder
// scaffolds and archives.
//
// A Workspace is an explicit handle: components receive it instead of
// deriving paths from process-wide conventions. At most one handle per root
// is live in a process. Mutating operations (scaffold, build) hold a Lease
// so that the two families never overlap.
package workspace
