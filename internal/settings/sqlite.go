package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const (
	keyAPIKey      = "api_key"
	keyBaseURL     = "base_url"
	keyModel       = "model"
	keyTemperature = "temperature"
)

// SQLiteStore persists settings as key/value rows. Keys never written fall
// back to the defaults it was opened with.
type SQLiteStore struct {
	db       *sql.DB
	defaults Settings
}

func OpenSQLite(path string, defaults Settings) (*SQLiteStore, error) {
	if path == "" {
		path = "data/settings.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// pragmas below are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db, defaults: defaults}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context) (Settings, error) {
	if s == nil || s.db == nil {
		return Settings{}, errors.New("store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := s.defaults
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, fmt.Errorf("scan settings: %w", err)
		}
		switch k {
		case keyAPIKey:
			out.APIKey = v
		case keyBaseURL:
			out.BaseURL = v
		case keyModel:
			out.Model = v
		case keyTemperature:
			t, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Settings{}, fmt.Errorf("parse temperature %q: %w", v, err)
			}
			out.Temperature = t
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

// Update applies p in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, p Patch) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	cur, err := s.Get(ctx)
	if err != nil {
		return err
	}
	next := cur.Apply(p)

	changed := map[string]string{}
	if next.APIKey != cur.APIKey {
		changed[keyAPIKey] = next.APIKey
	}
	if next.BaseURL != cur.BaseURL {
		changed[keyBaseURL] = next.BaseURL
	}
	if next.Model != cur.Model {
		changed[keyModel] = next.Model
	}
	if p.Temperature != nil {
		changed[keyTemperature] = strconv.FormatFloat(next.Temperature, 'f', -1, 64)
	}
	if len(changed) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := time.Now().Format(time.RFC3339)
	for k, v := range changed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert setting %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}
