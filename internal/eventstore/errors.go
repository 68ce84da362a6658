package eventstore

import (
	"git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

// Sentinel errors for event store operations. Wrap them with context at the
// call site.
var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open event store database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize event store schema").Build()

	ErrEventAppendFailed = errors.EventStoreError("failed to append event to store").Build()
	ErrEventQueryFailed  = errors.EventStoreError("failed to query events from store").Build()
)
