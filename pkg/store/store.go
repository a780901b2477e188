// Package store persists credential and egress-proxy state in SQLite.
//
// The gateway treats the store as the system of record for key
// provisioning: rows are created and deleted out of band, while the
// gateway pushes usage mutations and pulls new rows during sync.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"arclight-hq/relay/pkg/credential"
	"arclight-hq/relay/pkg/egress"
)

// Config configures the SQLite store.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// Store is a SQLite-backed implementation of the auth and proxies
// tables. It uses WAL journaling and a single-writer connection pool,
// which is what SQLite supports.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at path with
// default settings.
func Open(path string) (*Store, error) {
	return OpenWithConfig(Config{Path: path})
}

// OpenWithConfig opens the database with explicit settings and
// initializes the schema.
func OpenWithConfig(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auth (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		api_key TEXT NOT NULL,
		sent INTEGER NOT NULL DEFAULT 0,
		max INTEGER NOT NULL DEFAULT 0,
		valid INTEGER NOT NULL DEFAULT 1,
		used_at INTEGER NOT NULL DEFAULT 0,
		cooldown INTEGER NOT NULL DEFAULT 0,
		comments TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_auth_provider ON auth(provider);

	CREATE TABLE IF NOT EXISTS proxies (
		proxy_address TEXT NOT NULL,
		port INTEGER NOT NULL,
		username TEXT NOT NULL,
		password TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAllAuth fetches every credential row.
func (s *Store) GetAllAuth(ctx context.Context) ([]credential.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, api_key, sent, max, valid, used_at, cooldown, comments FROM auth`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth rows: %w", err)
	}
	defer rows.Close()

	var recs []credential.Record
	for rows.Next() {
		var (
			rec             credential.Record
			valid, cooldown int64
			usedAt          int64
		)
		if err := rows.Scan(&rec.ID, &rec.Provider, &rec.APIKey, &rec.Sent, &rec.Max,
			&valid, &usedAt, &cooldown, &rec.Comments); err != nil {
			return nil, fmt.Errorf("failed to scan auth row: %w", err)
		}
		rec.Valid = valid != 0
		rec.Cooldown = cooldown != 0
		if usedAt > 0 {
			rec.UsedAt = time.Unix(usedAt, 0).UTC()
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdateAuth bulk-updates the mutable fields of the given records by
// id, in one transaction. It returns the number of rows touched.
func (s *Store) UpdateAuth(ctx context.Context, recs []credential.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin auth update: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE auth SET sent = ?, valid = ?, used_at = ?, cooldown = ? WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare auth update: %w", err)
	}
	defer stmt.Close()

	var updated int64
	for _, rec := range recs {
		res, err := stmt.ExecContext(ctx,
			rec.Sent, boolToInt(rec.Valid), unixOrZero(rec.UsedAt), boolToInt(rec.Cooldown), rec.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update auth row %d: %w", rec.ID, err)
		}
		n, _ := res.RowsAffected()
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit auth update: %w", err)
	}
	return updated, nil
}

// ResetProviderSent zeroes the sent counter for every row owned by the
// provider. Called after a scheduled quota reset.
func (s *Store) ResetProviderSent(ctx context.Context, provider string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE auth SET sent = 0 WHERE provider = ?`, provider)
	if err != nil {
		return 0, fmt.Errorf("failed to reset sent for %q: %w", provider, err)
	}
	return res.RowsAffected()
}

// InsertAuth adds a credential row and returns its assigned id.
// Provisioning normally happens out of band; this exists for tests and
// operational seeding.
func (s *Store) InsertAuth(ctx context.Context, rec credential.Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO auth (provider, api_key, sent, max, valid, used_at, cooldown, comments)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Provider, rec.APIKey, rec.Sent, rec.Max,
		boolToInt(rec.Valid), unixOrZero(rec.UsedAt), boolToInt(rec.Cooldown), rec.Comments)
	if err != nil {
		return 0, fmt.Errorf("failed to insert auth row: %w", err)
	}
	return res.LastInsertId()
}

// SaveProxies replaces the proxies table with the given snapshot.
func (s *Store) SaveProxies(ctx context.Context, endpoints []egress.Endpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin proxy save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM proxies`); err != nil {
		return fmt.Errorf("failed to clear proxies: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO proxies (proxy_address, port, username, password) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare proxy insert: %w", err)
	}
	defer stmt.Close()

	for _, ep := range endpoints {
		if _, err := stmt.ExecContext(ctx, ep.Address, ep.Port, ep.Username, ep.Password); err != nil {
			return fmt.Errorf("failed to insert proxy %s: %w", ep.Redacted(), err)
		}
	}

	return tx.Commit()
}

// LoadProxies returns the last persisted proxy snapshot.
func (s *Store) LoadProxies(ctx context.Context) ([]egress.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT proxy_address, port, username, password FROM proxies`)
	if err != nil {
		return nil, fmt.Errorf("failed to query proxies: %w", err)
	}
	defer rows.Close()

	var endpoints []egress.Endpoint
	for rows.Next() {
		var ep egress.Endpoint
		if err := rows.Scan(&ep.Address, &ep.Port, &ep.Username, &ep.Password); err != nil {
			return nil, fmt.Errorf("failed to scan proxy row: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
