package counter

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitstats/db"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func openStore(t *testing.T, path string) (*Store, *sql.DB) {
	t.Helper()
	conn, err := db.InitSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.CloseDB(conn) })

	store := NewStore(conn, quietLogger())
	require.NoError(t, store.Initialize(context.Background()))
	return store, conn
}

func TestInitialize_SeedsTotalViews(t *testing.T) {
	store, conn := openStore(t, filepath.Join(t.TempDir(), "stats.db"))

	var value int64
	require.NoError(t, conn.QueryRow(`SELECT value FROM counters WHERE key = 'total_views'`).Scan(&value))
	assert.Equal(t, int64(0), value)

	total, err := store.TotalViews(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestInitialize_IdempotentAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")

	first, conn := openStore(t, path)
	_, err := first.IncrementTotalViews(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))

	second := NewStore(conn, quietLogger())
	require.NoError(t, second.Initialize(ctx))

	total, err := second.TotalViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestInitialize_ConcurrentCallsRunOnce(t *testing.T) {
	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer db.CloseDB(conn)

	store := NewStore(conn, quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	var rows int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(1) FROM counters`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestIncrement_ReturnsCommittedValue(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t, filepath.Join(t.TempDir(), "stats.db"))

	for want := int64(1); want <= 3; want++ {
		got, err := store.IncrementTotalViews(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIncrement_ConcurrentNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t, filepath.Join(t.TempDir(), "stats.db"))

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementTotalViews(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total, err := store.TotalViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), total)
}

func TestNamedCounters_AreIndependent(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t, filepath.Join(t.TempDir(), "stats.db"))

	missing, err := store.Get(ctx, "signups")
	require.NoError(t, err)
	assert.Equal(t, int64(0), missing)

	_, err = store.Increment(ctx, "signups")
	require.NoError(t, err)
	_, err = store.Increment(ctx, "signups")
	require.NoError(t, err)

	signups, err := store.Get(ctx, "signups")
	require.NoError(t, err)
	assert.Equal(t, int64(2), signups)

	total, err := store.TotalViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestTotalViews_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")

	conn, err := db.InitSQLite(path)
	require.NoError(t, err)
	store := NewStore(conn, quietLogger())
	require.NoError(t, store.Initialize(ctx))
	for i := 0; i < 5; i++ {
		_, err := store.IncrementTotalViews(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, db.CloseDB(conn))

	reopened, _ := openStore(t, path)
	total, err := reopened.TotalViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestClosedDatabase_ReportsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	store, conn := openStore(t, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, conn.Close())

	_, err := store.IncrementTotalViews(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = store.TotalViews(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	assert.ErrorIs(t, store.Ping(ctx), ErrStorageUnavailable)
}

func TestRetryBusy(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}

	calls := 0
	err := retryBusy(func() error {
		calls++
		if calls == 1 {
			return busy
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = retryBusy(func() error {
		calls++
		return busy
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "busy is retried exactly once")

	calls = 0
	other := errors.New("disk I/O error")
	err = retryBusy(func() error {
		calls++
		return other
	})
	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, isBusy(sqlite3.Error{Code: sqlite3.ErrCorrupt}))
	assert.False(t, isBusy(nil))
}
