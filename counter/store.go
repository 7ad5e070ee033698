// Package counter persists named, monotonically increasing counters in SQLite.
package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// TotalViews is the counter bumped once per home page load.
const TotalViews = "total_views"

var ErrStorageUnavailable = errors.New("counter storage unavailable")

// Store serialises every read and write behind a single mutex. The
// underlying *sql.DB is owned by the caller.
type Store struct {
	conn *sql.DB
	log  logrus.FieldLogger

	mu sync.Mutex

	initOnce sync.Once
	initErr  error
}

func NewStore(conn *sql.DB, log logrus.FieldLogger) *Store {
	return &Store{
		conn: conn,
		log:  log.WithField("component", "counter_store"),
	}
}

// Initialize creates the counters table and seeds total_views with 0. Only
// the first call does any work; later calls return the same result.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		err := retryBusy(func() error {
			return ensureCounterSchema(ctx, s.conn, TotalViews)
		})
		if err != nil {
			s.initErr = storageError("initialize", err)
			return
		}
		s.log.Debug("Counter schema ready")
	})
	return s.initErr
}

// Get returns the value of the named counter, or 0 if it has never been
// incremented.
func (s *Store) Get(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value int64
	err := retryBusy(func() error {
		err := s.conn.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, name).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			value = 0
			return nil
		}
		return err
	})
	if err != nil {
		return 0, storageError("read "+name, err)
	}
	return value, nil
}

// Increment adds one to the named counter in its own transaction and returns
// the committed value.
func (s *Store) Increment(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value int64
	err := retryBusy(func() error {
		v, err := s.incrementTx(ctx, name)
		value = v
		return err
	})
	if err != nil {
		return 0, storageError("increment "+name, err)
	}
	return value, nil
}

func (s *Store) incrementTx(ctx context.Context, name string) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO counters (key, value) VALUES (?, 1)
		 ON CONFLICT(key) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		return 0, err
	}

	var value int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, name).Scan(&value); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) TotalViews(ctx context.Context) (int64, error) {
	return s.Get(ctx, TotalViews)
}

func (s *Store) IncrementTotalViews(ctx context.Context) (int64, error) {
	return s.Increment(ctx, TotalViews)
}

// Ping reports whether the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return storageError("ping", err)
	}
	return nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// retryBusy runs fn a second time when SQLite reports the database as busy
// or locked.
func retryBusy(fn func() error) error {
	err := fn()
	if isBusy(err) {
		err = fn()
	}
	return err
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
