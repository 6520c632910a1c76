// Package sqlitestore provides SQLite-backed store implementations, for
// deployments that want SQL tooling over the engine's records instead of a
// bbolt file. Connections are instrumented with OpenTelemetry.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS acts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	at           TEXT    NOT NULL,
	user_id      INTEGER NOT NULL,
	guild_id     INTEGER NOT NULL,
	moderator_id INTEGER NOT NULL,
	kind         TEXT    NOT NULL,
	active       INTEGER NOT NULL DEFAULT 0,
	counting     INTEGER NOT NULL DEFAULT 0,
	reviewer     INTEGER NOT NULL DEFAULT 0,
	duration     INTEGER NOT NULL DEFAULT 0,
	reason       TEXT    NOT NULL DEFAULT '',
	prove_link   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS acts_by_user ON acts(user_id, guild_id);
CREATE INDEX IF NOT EXISTS acts_by_moderator ON acts(moderator_id, guild_id);

CREATE TABLE IF NOT EXISTS sanctions (
	key       TEXT PRIMARY KEY,
	user_id   INTEGER NOT NULL,
	family    TEXT    NOT NULL,
	subtype   TEXT    NOT NULL DEFAULT '',
	guild_id  INTEGER NOT NULL,
	action_id INTEGER NOT NULL,
	start     TEXT    NOT NULL,
	duration  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS sanctions_by_user ON sanctions(user_id);

CREATE TABLE IF NOT EXISTS warnings (
	guild_id INTEGER NOT NULL,
	user_id  INTEGER NOT NULL,
	count    INTEGER NOT NULL DEFAULT 0,
	givens   TEXT    NOT NULL DEFAULT '[]',
	PRIMARY KEY (guild_id, user_id)
);

CREATE TABLE IF NOT EXISTS role_requests (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL,
	guild_id      INTEGER NOT NULL,
	nickname      TEXT    NOT NULL,
	role          TEXT    NOT NULL,
	rank          INTEGER NOT NULL DEFAULT 0,
	message       INTEGER NOT NULL DEFAULT 0,
	approved      INTEGER NOT NULL DEFAULT 0,
	counting      INTEGER NOT NULL DEFAULT 1,
	sent_at       TEXT    NOT NULL,
	moderator_id  INTEGER NOT NULL DEFAULT 0,
	taken_at      TEXT,
	checked_at    TEXT,
	reason        TEXT    NOT NULL DEFAULT '',
	reviewer      INTEGER NOT NULL DEFAULT 0,
	review_reason TEXT    NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS role_requests_open
	ON role_requests(guild_id, user_id) WHERE checked_at IS NULL;

CREATE TABLE IF NOT EXISTS role_removals (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	guild_id     INTEGER NOT NULL,
	roles        TEXT    NOT NULL DEFAULT '[]',
	at           TEXT    NOT NULL,
	moderator_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notices (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	guild_id     INTEGER NOT NULL,
	moderator_id INTEGER NOT NULL,
	kind         TEXT    NOT NULL,
	at           TEXT    NOT NULL,
	duration     INTEGER NOT NULL DEFAULT 0,
	message      INTEGER NOT NULL DEFAULT 0,
	expired      INTEGER NOT NULL DEFAULT 0,
	notified     INTEGER NOT NULL DEFAULT 0
);
`

// Store wraps a SQLite database and provides access to specialized stores.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the specified path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := otelsql.Open("sqlite", dsn, otelsql.WithAttributes(
		semconv.DBSystemSqlite,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ActStore returns an action ledger store backed by this database.
func (s *Store) ActStore() *ActStore {
	return &ActStore{db: s.db}
}

// SanctionStore returns a sanction store backed by this database.
func (s *Store) SanctionStore() *SanctionStore {
	return &SanctionStore{db: s.db}
}

// WarningStore returns a warning accumulator store backed by this database.
func (s *Store) WarningStore() *WarningStore {
	return &WarningStore{db: s.db}
}

// RoleStore returns a role request store backed by this database.
func (s *Store) RoleStore() *RoleStore {
	return &RoleStore{db: s.db}
}

// NoticeStore returns a notification store backed by this database.
func (s *Store) NoticeStore() *NoticeStore {
	return &NoticeStore{db: s.db}
}

// isUniqueViolation reports whether the error is a unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseNullableTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	return parseTime(ns.String)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
