// Package history keeps a local ledger of deployment outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/ivyci/enginectl/pkg/deploy"
	"github.com/ivyci/enginectl/pkg/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrNotFound        = errors.New("deployment not found")
	ErrAlreadyRecorded = errors.New("deployment already recorded")
)

// maxLogBytes caps the engine log kept per entry
const maxLogBytes = 64 * 1024

// Entry is one recorded deployment
type Entry struct {
	ID          string
	Artifact    string
	Target      string
	Application string
	Deployer    string
	Kind        types.OutcomeKind
	Success     bool
	Elapsed     time.Duration
	Error       string
	LogPath     string
	EngineLog   string
	RecordedAt  time.Time
}

// FromOutcome builds the entry for an outcome of req
func FromOutcome(req *deploy.Request, out deploy.Outcome, deployer string) Entry {
	e := Entry{
		ID:          out.ID,
		Artifact:    req.Source(),
		Target:      out.Target,
		Application: req.Application(),
		Deployer:    deployer,
		Kind:        out.Kind,
		Success:     out.Success,
		Elapsed:     out.Elapsed,
		LogPath:     out.LogPath,
		EngineLog:   out.Log,
		RecordedAt:  time.Now(),
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	if len(e.EngineLog) > maxLogBytes {
		e.EngineLog = e.EngineLog[len(e.EngineLog)-maxLogBytes:]
	}
	return e
}

// Store is the deployment ledger backed by SQLite
type Store struct {
	DB *sql.DB
}

// DefaultPath returns the per-user ledger location
func DefaultPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "enginectl", "history.db")
	}
	return filepath.Join(os.TempDir(), "enginectl", "history.db")
}

// Open opens the ledger at path and runs all pending migrations.
// Use ":memory:" for a throwaway ledger.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: an in-memory database exists per connection, and SQLite has a single writer anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.DB.Close()
}

// Record stores e
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO deployments (id, artifact, target, application, deployer, kind, success, elapsed_ms, error, log_path, engine_log, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Artifact, e.Target, e.Application, e.Deployer, string(e.Kind), boolInt(e.Success),
		e.Elapsed.Milliseconds(), nullString(e.Error), nullString(e.LogPath), nullString(e.EngineLog),
		e.RecordedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("deployment %q: %w", e.ID, ErrAlreadyRecorded)
		}
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, artifact, target, application, deployer, kind, success, elapsed_ms, error, log_path, engine_log, recorded_at FROM deployments`

// Get returns the entry with id
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.DB.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("deployment %q: %w", id, ErrNotFound)
	}
	return e, err
}

// Recent returns up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, selectColumns+` ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts recorded deployments by outcome kind
func (s *Store) Stats(ctx context.Context) (map[types.OutcomeKind]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT kind, COUNT(*) FROM deployments GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count deployments: %w", err)
	}
	defer rows.Close()

	stats := make(map[types.OutcomeKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[types.OutcomeKind(kind)] = n
	}
	return stats, rows.Err()
}

// Prune deletes entries recorded before cutoff and returns how many were removed
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM deployments WHERE recorded_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune deployments: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                         Entry
		kind                      string
		success                   int
		elapsedMS, recordedAt     int64
		errText, logPath, logText sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Artifact, &e.Target, &e.Application, &e.Deployer, &kind, &success,
		&elapsedMS, &errText, &logPath, &logText, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan deployment: %w", err)
	}
	e.Kind = types.OutcomeKind(kind)
	e.Success = success != 0
	e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	e.Error = errText.String
	e.LogPath = logPath.String
	e.EngineLog = logText.String
	e.RecordedAt = time.UnixMilli(recordedAt)
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
