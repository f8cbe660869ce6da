// Package audit keeps a per-turn record of routing and dispatch outcomes.
// Writes are best effort: callers log failures and carry on.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Entry is one orchestrated chat turn.
type Entry struct {
	ID         string        `json:"id"`
	Emotion    string        `json:"emotion"`
	Escalation int           `json:"escalation"`
	Route      string        `json:"route"`
	Rule       string        `json:"rule"`
	Intensity  string        `json:"intensity"`
	Model      string        `json:"model"`
	Fallback   bool          `json:"fallback"`
	Latency    time.Duration `json:"latency"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Recorder is the write side used on the request path.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store persists entries through database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the audit database and creates the schema. driver is one
// of sqlite, pgx (or postgres) and mysql.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = normalizeDriver(driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported audit driver")
	}
	if dsn == "" {
		return nil, fmt.Errorf("audit dsn is required for driver %s", driver)
	}

	if driver == "sqlite" && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if driver == "sqlite" {
		// single writer
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initializeSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return s, nil
}

func normalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "sqlite", "sqlite3", "":
		return "sqlite"
	case "pgx", "postgres", "postgresql":
		return "pgx"
	case "mysql":
		return "mysql"
	default:
		return ""
	}
}

func (s *Store) initializeSchema(ctx context.Context) error {
	idType := "TEXT"
	if s.driver == "mysql" {
		idType = "VARCHAR(64)"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_audit (
			id ` + idType + ` PRIMARY KEY,
			emotion VARCHAR(32) NOT NULL,
			escalation INTEGER NOT NULL,
			route VARCHAR(32) NOT NULL,
			rule VARCHAR(64) NOT NULL,
			intensity VARCHAR(32) NOT NULL,
			model VARCHAR(255) NOT NULL,
			fallback INTEGER NOT NULL,
			latency_ms BIGINT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
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

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	fallback := 0
	if e.Fallback {
		fallback = 1
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO chat_audit
		(id, emotion, escalation, route, rule, intensity, model, fallback, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Emotion, e.Escalation, e.Route, e.Rule, e.Intensity, e.Model, fallback,
		e.Latency.Milliseconds(), e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, emotion, escalation, route, rule, intensity, model, fallback, latency_ms, created_at
		FROM chat_audit ORDER BY created_at DESC, id DESC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			fallback  int
			latencyMS int64
			createdMS int64
		)
		if err := rows.Scan(&e.ID, &e.Emotion, &e.Escalation, &e.Route, &e.Rule, &e.Intensity, &e.Model, &fallback, &latencyMS, &createdMS); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Fallback = fallback != 0
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
