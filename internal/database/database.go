// Package database is the persistence gateway: a single query/execute
// contract over two interchangeable engines, embedded SQLite for development
// and pooled PostgreSQL for production. The backend is chosen once at
// startup from configuration; callers never branch on it. Statements are
// written with ? placeholders and rebound to $n for PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openpost-io/openpost/internal/config"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
)

// defaultTimeout bounds every gateway call that arrives without a deadline,
// including the wait for a pooled connection.
const defaultTimeout = 5 * time.Second

// StorageError wraps a backend failure so callers can either mask it (the
// auth layer does) or propagate it with the cause intact.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Result reports the outcome of a write statement. InsertedID is only set
// for INSERTs; PostgreSQL delivers it via RETURNING, SQLite via last rowid.
type Result struct {
	InsertedID   int64
	RowsAffected int64
}

// DB owns the connection lifecycle for the active backend. Connect and Close
// are called once at startup and shutdown, not per request.
type DB struct {
	cfg    *config.Config
	conn   *sql.DB
	driver string
}

// New builds an unconnected gateway for the backend named in cfg.
func New(cfg *config.Config) *DB {
	return &DB{cfg: cfg}
}

// Connect opens the backend, verifies it, and applies pending migrations.
func (d *DB) Connect() error {
	if d.conn != nil {
		return nil
	}

	var conn *sql.DB
	var err error

	switch d.cfg.Database.Type {
	case "postgres":
		conn, err = d.openPostgres()
	case "sqlite", "":
		conn, err = d.openSQLite()
	default:
		return fmt.Errorf("unsupported database type: %s", d.cfg.Database.Type)
	}
	if err != nil {
		return err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(conn, d.cfg.Database.Type); err != nil {
		conn.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	d.conn = conn
	d.driver = d.cfg.Database.Type
	if d.driver == "" {
		d.driver = "sqlite"
	}
	log.Printf("Connected to %s database", d.driver)
	return nil
}

// Close releases the backend resource.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *DB) openPostgres() (*sql.DB, error) {
	cfg := d.cfg.Database
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxConns)
	conn.SetMaxIdleConns(cfg.MaxIdle)
	if cfg.ConnMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			conn.SetConnMaxLifetime(lifetime)
		} else {
			log.Printf("Warning: invalid connMaxLifetime %q, ignoring", cfg.ConnMaxLifetime)
		}
	}
	return conn, nil
}

func (d *DB) openSQLite() (*sql.DB, error) {
	path := d.cfg.Database.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One long-lived handle; SQLite serializes writers anyway.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Query executes a read statement and returns all matching rows, in order.
// An empty result is a nil slice, not an error.
func (d *DB) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	rows, err := d.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	return result, nil
}

// Exec executes a write or DDL statement. For INSERTs it also reports the
// generated primary key.
func (d *DB) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	if d.driver == "postgres" && isInsert(query) {
		// lib/pq cannot report LastInsertId; fetch the key via RETURNING.
		var id int64
		err := d.conn.QueryRowContext(ctx, d.rebind(query)+" RETURNING id", args...).Scan(&id)
		if err != nil {
			return Result{}, &StorageError{Op: "exec", Err: err}
		}
		return Result{InsertedID: id, RowsAffected: 1}, nil
	}

	res, err := d.conn.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return Result{}, &StorageError{Op: "exec", Err: err}
	}

	var out Result
	out.RowsAffected, _ = res.RowsAffected()
	if isInsert(query) {
		out.InsertedID, _ = res.LastInsertId()
	}
	return out, nil
}

func (d *DB) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

// rebind rewrites ? placeholders as $1..$n for PostgreSQL. Statements in
// this codebase never contain a literal question mark.
func (d *DB) rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isInsert(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT")
}
