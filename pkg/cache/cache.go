// Package cache keeps the last fetched task list in a local SQLite file so
// the CLI can show something when the backend is unreachable.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// FileName is the cache database name under the config dir.
const FileName = "cache.db"

// DB is an open cache database.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDir opens the cache in dir.
func OpenDir(dir string) (*DB, error) {
	return Open(filepath.Join(dir, FileName))
}

// Open opens or creates the cache database at path. ":memory:" works for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks table: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		user_id TEXT PRIMARY KEY,
		fetched_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return &DB{db: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// For returns the cache of one user's tasks.
func (d *DB) For(userID string) *Tasks {
	return &Tasks{db: d, userID: userID}
}

// Tasks is the cached list of one user. It satisfies store.TaskCache.
type Tasks struct {
	db     *DB
	userID string
}

// SaveTasks replaces the cached list.
func (t *Tasks) SaveTasks(tasks []model.Task) error {
	tx, err := t.db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tasks WHERE user_id = ?", t.userID); err != nil {
		return fmt.Errorf("failed to clear cached tasks: %w", err)
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO tasks (user_id, id, position, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, task := range tasks {
		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
		}
		if _, err := stmt.Exec(t.userID, task.ID, i, string(data)); err != nil {
			return fmt.Errorf("failed to cache task %s: %w", task.ID, err)
		}
	}
	_, err = tx.Exec(`INSERT INTO snapshots (user_id, fetched_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET fetched_at = excluded.fetched_at`, t.userID, t.db.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record snapshot time: %w", err)
	}
	return tx.Commit()
}

// LoadTasks returns the cached list in the order it was saved.
func (t *Tasks) LoadTasks() ([]model.Task, error) {
	rows, err := t.db.db.Query("SELECT data FROM tasks WHERE user_id = ? ORDER BY position", t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var task model.Task
		if err := json.Unmarshal([]byte(data), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// FetchedAt returns when the list was last saved, or the zero time.
func (t *Tasks) FetchedAt() (time.Time, error) {
	var at time.Time
	err := t.db.db.QueryRow("SELECT fetched_at FROM snapshots WHERE user_id = ?", t.userID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return at, err
}

// Clear drops the user's cached list.
func (t *Tasks) Clear() error {
	if _, err := t.db.db.Exec("DELETE FROM tasks WHERE user_id = ?", t.userID); err != nil {
		return err
	}
	_, err := t.db.db.Exec("DELETE FROM snapshots WHERE user_id = ?", t.userID)
	return err
}
