// Package cache holds the per-tenant local mirror of Productive entities, the
// query-result cache and the refresh queue, all persisted in one sqlite file.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// CurrentDBVersion is the current cache schema version. A database stamped
// with any other version is dropped and rebuilt on open.
const CurrentDBVersion = 1

// dbFileName is the name of the sqlite file inside a tenant directory.
const dbFileName = "cache.db"

// Store is a tenant-scoped handle on the persisted cache. A Store whose
// database could not be opened is still usable: every read misses and every
// write is dropped.
type Store struct {
	db     *sql.DB
	tenant string
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the cache database for tenant inside dir.
func Open(dir, tenant string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, fmt.Errorf("tenant is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := openDB(filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, tenant: tenant, dir: dir, logger: logger.With(zap.String("tenant", tenant)), now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an in-memory cache (for testing).
func OpenInMemory(tenant string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := openDB(":memory:")
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, tenant: tenant, logger: logger.With(zap.String("tenant", tenant)), now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Unavailable returns a Store that always misses. It is what the registry hands
// out when the database cannot be opened.
func Unavailable(tenant string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{tenant: tenant, logger: logger.With(zap.String("tenant", tenant)), now: time.Now}
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting journal mode: %w", err)
		}
	}
	return db, nil
}

// schemaTables lists every table initialize creates apart from meta.
func schemaTables() []string {
	tables := []string{"sync_meta", "refresh_queue", "query_cache"}
	for _, k := range Kinds {
		tables = append(tables, k.table())
	}
	return tables
}

// initialize creates the cache schema, discarding the contents of a database
// written with a different schema version.
func (s *Store) initialize() error {
	if _, err := s.db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("failed to read cache version: %w", err)
	case stored != strconv.Itoa(CurrentDBVersion):
		s.logger.Info("cache schema changed, rebuilding",
			zap.String("from", stored),
			zap.Int("to", CurrentDBVersion))
		for _, t := range schemaTables() {
			if _, err := s.db.Exec(`DROP TABLE IF EXISTS ` + t); err != nil {
				return fmt.Errorf("failed to drop %s: %w", t, err)
			}
		}
	}

	var b strings.Builder
	b.WriteString(`

		-- Newest synced_at per kind, used by IsFresh
		CREATE TABLE IF NOT EXISTS sync_meta (
			kind TEXT PRIMARY KEY,
			max_synced_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS refresh_queue (
			cache_key TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			queued_at INTEGER NOT NULL,
			generation INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_queue_queued ON refresh_queue(queued_at);

		CREATE TABLE IF NOT EXISTS query_cache (
			cache_key TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			value TEXT NOT NULL,
			stored_at INTEGER NOT NULL
		);
	`)

	for _, k := range Kinds {
		t := k.table()
		fmt.Fprintf(&b, `
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			label_norm TEXT NOT NULL,
			search_fields TEXT NOT NULL DEFAULT '[]',
			search_keys TEXT NOT NULL DEFAULT '',
			search_slug TEXT NOT NULL DEFAULT '',
			owner_id TEXT,
			synced_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_owner ON %[1]s(owner_id) WHERE owner_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_%[1]s_synced ON %[1]s(synced_at);
		`, t)
	}

	if _, err := s.db.Exec(b.String()); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set cache version: %w", err)
	}
	return nil
}

// Tenant returns the tenant this store is scoped to.
func (s *Store) Tenant() string {
	return s.tenant
}

// Available reports whether the store is backed by a database.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// miss logs a failed read and reports it as a cache miss.
func (s *Store) miss(op string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn("cache read failed, treating as miss", zap.String("op", op), zap.Error(err))
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
