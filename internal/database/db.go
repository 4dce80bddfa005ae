package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist or is not owned by the caller
var ErrNotFound = errors.New("not found")

// Dialect identifies the SQL backend behind a DB
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// DB wraps the connection pool together with the dialect it speaks
type DB struct {
	*sql.DB
	dialect Dialect
}

// New opens a database from a URL. postgres:// and postgresql:// URLs use
// lib/pq; sqlite://path, file: and :memory: use the embedded SQLite driver.
func New(databaseURL string) (*DB, error) {
	dialect, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	driver := "postgres"
	if dialect == DialectSQLite {
		driver = "sqlite"
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// One writer; every connection of an in-memory database would otherwise be a separate database.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: conn, dialect: dialect}, nil
}

func parseDatabaseURL(raw string) (Dialect, string, error) {
	switch {
	case raw == "":
		return "", "", fmt.Errorf("database URL is empty")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return DialectSQLite, withSQLitePragmas(strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "file:"), raw == ":memory:":
		return DialectSQLite, withSQLitePragmas(raw), nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme")
	}
}

func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Dialect returns the backend this DB talks to
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Migrate applies the embedded schema for the DB's dialect. Every statement
// is idempotent so Migrate is safe to run on each start.
func (db *DB) Migrate(ctx context.Context) error {
	dir := "migrations/" + string(db.dialect)
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		script, err := fs.ReadFile(migrationFS, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

// closeRows closes rows, ignoring the error; iteration errors are read from rows.Err.
func closeRows(rows *sql.Rows) {
	_ = rows.Close()
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// parseDay reads a day column. Postgres DATE values arrive as timestamps and
// SQLite stores ISO text; both start with YYYY-MM-DD.
func parseDay(raw string) (time.Time, error) {
	if len(raw) < 10 {
		return time.Time{}, fmt.Errorf("invalid day %q", raw)
	}
	return time.Parse("2006-01-02", raw[:10])
}
