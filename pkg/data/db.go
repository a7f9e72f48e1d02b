package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "data.db"

	schemaVersion = 1

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	timeFormat = "2006-01-02T15:04:05Z"

	insertSchemaVersionSQL = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)
		ON CONFLICT (version) DO NOTHING
	`
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")

	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
)

// IsPostgres reports whether dsn addresses a postgres server rather than a sqlite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Init creates the schema for the given dsn. Safe to run on every start.
func Init(dsn string) error {
	if dsn == "" {
		return errors.New("dsn not specified")
	}

	db, err := GetDB(dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer db.Close()

	ddl := "sql/sqlite.sql"
	if IsPostgres(dsn) {
		ddl = "sql/postgres.sql"
	}

	slog.Debug("applying db schema", "file", ddl)
	b, err := f.ReadFile(ddl)
	if err != nil {
		return fmt.Errorf("failed to read the schema creation file: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	if _, err := db.Exec(rebind(db, insertSchemaVersionSQL), schemaVersion, now()); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// GetDB opens dsn with the sqlite driver, or lib/pq for postgres URLs.
func GetDB(dsn string) (*sql.DB, error) {
	driver, source := driverSQLite, dsn
	if IsPostgres(dsn) {
		driver = driverPostgres
	} else {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		source = dsn + sep + sqlitePragmas
	}

	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// rebind rewrites ? placeholders into $n for postgres connections.
func rebind(db *sql.DB, q string) string {
	if _, ok := db.Driver().(*pq.Driver); !ok {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("error rolling back transaction", "error", err)
	}
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}
