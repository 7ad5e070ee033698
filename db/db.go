package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const busyTimeoutMillis = 5000

// InitSQLite opens the SQLite file at path in WAL mode.
func InitSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeoutMillis))
	if err != nil {
		return nil, err
	}

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error enabling WAL journal: %w", err)
	}

	return conn, nil
}

func CloseDB(databaseInstance *sql.DB) error {
	if databaseInstance == nil {
		return nil
	}
	return databaseInstance.Close()
}
