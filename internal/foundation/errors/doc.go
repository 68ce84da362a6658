// Package errors provides the classified error primitives used across oxobuilder.
//
// Every failure that reaches a user-facing boundary (a log line, a CLI exit
// code) is a ClassifiedError carrying a category and a severity. The build
// pipeline relies on three categories in particular:
//
//   - CategoryFileSystem: scaffold and archive I/O failures
//   - CategoryNetwork: transport-level submission failures
//   - CategoryRemoteBuild: the remote service answered with a non-2xx status
//
// Example usage:
//
//	err := errors.WrapError(ioErr, errors.CategoryFileSystem, "write archive entry").
//		WithContext("path", rel).
//		Build()
package errors
