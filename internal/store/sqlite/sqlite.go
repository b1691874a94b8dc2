// Package sqlite implements the ledger store on a local SQLite database.
// Each collection is a single JSON document row guarded by a revision
// counter, so concurrent writers fail fast instead of overwriting each
// other.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tesoreria/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) Read(ctx context.Context, c store.Collection, v any) (int64, error) {
	var (
		rev  int64
		data []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, data FROM collections WHERE name = ?`, string(c),
	).Scan(&rev, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read collection %s: %w", c, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return 0, fmt.Errorf("decode collection %s: %w", c, err)
	}
	return rev, nil
}

func (s *Store) Apply(ctx context.Context, writes ...store.Write) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		data, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", w.Collection, err)
		}

		var cur int64
		err = tx.QueryRowContext(ctx,
			`SELECT revision FROM collections WHERE name = ?`, string(w.Collection),
		).Scan(&cur)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			cur = 0
		case err != nil:
			return fmt.Errorf("check revision of %s: %w", w.Collection, err)
		}
		if cur != w.Rev {
			return fmt.Errorf("apply %s (have %d, want %d): %w", w.Collection, cur, w.Rev, store.ErrRevisionConflict)
		}

		now := time.Now().UTC()
		if cur == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO collections (name, revision, data, updated_at) VALUES (?, 1, ?, ?)`,
				string(w.Collection), data, now)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE collections SET revision = revision + 1, data = ?, updated_at = ? WHERE name = ?`,
				data, now, string(w.Collection))
		}
		if err != nil {
			return fmt.Errorf("write collection %s: %w", w.Collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}

	slog.DebugContext(ctx, "Collections applied", "count", len(writes))
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
