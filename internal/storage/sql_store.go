package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/saraylo/assessment-trainer/internal/assessment"

	// Postgres driver.
	_ "github.com/lib/pq"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	upsertSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	selectSQL = `SELECT value FROM kv WHERE key = ?`
	deleteSQL = `DELETE FROM kv WHERE key = ?`
)

// SQLStore keeps the profile in a key-value table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// OpenSQL connects, applies dialect settings and creates the table.
func OpenSQL(dialect Dialect, dsn string, logger *log.Logger) (*SQLStore, error) {
	if logger == nil {
		panic("SQLStore: logger cannot be nil")
	}
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialect == DialectSQLite {
		// an in-memory database exists per connection
		db.SetMaxOpenConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	s := &SQLStore{db: db, dialect: dialect, logger: logger}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	logger.Printf("SQLStore: opened %s store", dialect)
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the dialect's style.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Save(ctx context.Context, profile assessment.UserCalibrationData) error {
	raw, err := encodeProfile(profile)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, rebind(s.dialect, upsertSQL), CalibrationKey, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	s.logger.Printf("SQLStore: saved %s for user %q (%d zones)", CalibrationKey, profile.UserID, len(profile.Zones))
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (assessment.UserCalibrationData, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, rebind(s.dialect, selectSQL), CalibrationKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.UserCalibrationData{}, ErrNotFound
	}
	if err != nil {
		return assessment.UserCalibrationData{}, fmt.Errorf("load calibration: %w", err)
	}
	return decodeProfile([]byte(raw))
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, rebind(s.dialect, deleteSQL), CalibrationKey); err != nil {
		return fmt.Errorf("clear calibration: %w", err)
	}
	s.logger.Printf("SQLStore: cleared %s", CalibrationKey)
	return nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
