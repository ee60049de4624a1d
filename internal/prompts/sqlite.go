// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package prompts

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	quillerr "github.com/quill-dev/quill/pkg/errors"
)

func init() {
	RegisterBackend("sqlite", func(dataDir string) (Store, error) {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "creating data directory %s", dataDir)
		}
		return NewSQLiteStore(filepath.Join(dataDir, "prompts.db"))
	})
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// initialises the prompts table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "migrating sqlite db")
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS prompts (
	name       TEXT PRIMARY KEY,
	content    TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (*Template, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	const q = `SELECT name, content, updated_at FROM prompts WHERE name = ?`

	var tmpl Template
	var updatedAt string

	err := s.db.QueryRowContext(ctx, q, name).Scan(&tmpl.Name, &tmpl.Content, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, quillerr.New(quillerr.CodePromptNotFound, "prompt not found", quillerr.FieldPrompt(name))
	}
	if err != nil {
		return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "getting prompt %s", name)
	}

	tmpl.UpdatedAt = parseTime(updatedAt)
	return &tmpl, nil
}

func (s *SQLiteStore) Set(ctx context.Context, name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}

	const q = `INSERT INTO prompts (name, content, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, q, name, content, formatTime(time.Now()))
	if err != nil {
		return quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "storing prompt %s", name)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	const q = `DELETE FROM prompts WHERE name = ?`

	result, err := s.db.ExecContext(ctx, q, name)
	if err != nil {
		return quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "deleting prompt %s", name)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "checking rows affected for prompt %s", name)
	}
	if rows == 0 {
		return quillerr.New(quillerr.CodePromptNotFound, "prompt not found", quillerr.FieldPrompt(name))
	}
	return nil
}

func (s *SQLiteStore) ListNames(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM prompts ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "listing prompts")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "scanning prompt name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, quillerr.Wrapf(err, quillerr.CodePromptDatabaseFailure, "iterating prompts")
	}
	return names, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
