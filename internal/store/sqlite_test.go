package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-tracker/internal/store"
)

func setupTestStore(t *testing.T) *store.SQLiteSnapshotStore {
	t.Helper()

	s, err := store.OpenSQLite(":memory:", 10)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSnapshotStore_LoadLatestEmpty(t *testing.T) {
	s := setupTestStore(t)

	data, err := s.LoadLatest(context.Background())

	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLiteSnapshotStore_LoadLatestReturnsNewest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []byte(`{"first":1}`)))
	require.NoError(t, s.Save(ctx, []byte(`{"second":2}`)))

	data, err := s.LoadLatest(ctx)

	require.NoError(t, err)
	assert.JSONEq(t, `{"second":2}`, string(data))
}

func TestSQLiteSnapshotStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	ctx := context.Background()

	s, err := store.OpenSQLite(path, 10)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, []byte(`{"Paris":{}}`)))
	require.NoError(t, s.Close())

	s, err = store.OpenSQLite(path, 10)
	require.NoError(t, err)
	defer s.Close()

	data, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"Paris":{}}`, string(data))
}

func TestSQLiteSnapshotStore_ClosedDatabase(t *testing.T) {
	s, err := store.OpenSQLite(":memory:", 10)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Save(context.Background(), []byte(`{}`))
	require.ErrorContains(t, err, "failed to insert snapshot")

	_, err = s.LoadLatest(context.Background())
	require.ErrorContains(t, err, "failed to query latest snapshot")
}

func TestSQLiteSnapshotStore_RoundTripsTable(t *testing.T) {
	s := setupTestStore(t)
	table := store.NewTrackingTable()
	_, err := table.Add("Paris", paris)
	require.NoError(t, err)

	data, err := table.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), data))

	loaded, err := s.LoadLatest(context.Background())
	require.NoError(t, err)

	restored := store.NewTrackingTable()
	require.NoError(t, restored.Restore(loaded))
	assert.Equal(t, []string{"Paris"}, restored.List())
}

func TestSQLiteSnapshotStore_PrunesBeyondRetention(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := store.NewSQLiteSnapshotStore(db, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(context.Background(), []byte(fmt.Sprintf(`{"n":%d}`, i))))
	}

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&rows))
	assert.Equal(t, 2, rows)

	data, err := s.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":4}`, string(data))
}
