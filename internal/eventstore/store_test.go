package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndRetrieve(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "job-1", TypeBuildStarted, []byte(`{"trigger":"command"}`), map[string]string{"worker_id": "worker-0"}))
	require.NoError(t, store.Append(ctx, "job-2", TypeBuildStarted, nil, nil))
	require.NoError(t, store.Append(ctx, "job-1", TypeBuildFinished, []byte(`{"state":"succeeded"}`), nil))

	events, err := store.GetByBuildID(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeBuildStarted, events[0].Type())
	assert.Equal(t, TypeBuildFinished, events[1].Type())
	assert.Equal(t, "worker-0", events[0].Metadata()["worker_id"])
	assert.JSONEq(t, `{"trigger":"command"}`, string(events[0].Payload()))

	other, err := store.GetByBuildID(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.JSONEq(t, `{}`, string(other[0].Payload()))
}

func TestSQLiteStore_GetRange(t *testing.T) {
	store := newMemoryStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Append(t.Context(), "old", TypeBuildStarted, nil, nil))
	clock = base.Add(2 * time.Hour)
	require.NoError(t, store.Append(t.Context(), "new", TypeBuildStarted, nil, nil))

	events, err := store.GetRange(t.Context(), base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].BuildID())
}

func TestSQLiteStore_RecentBuildIDs(t *testing.T) {
	store := newMemoryStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(t.Context(), id, TypeBuildStarted, nil, nil))
	}
	require.NoError(t, store.Append(t.Context(), "a", TypeBuildFinished, nil, nil))

	ids, err := store.RecentBuildIDs(t.Context(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids)
}

func TestSQLiteStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), "job-1", TypeBuildStarted, nil, nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByBuildID(t.Context(), "job-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
