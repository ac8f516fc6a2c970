package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"romgrab/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const columns = "id, task_id, kind, rom_id, slug, title, platform, region, started_at, elapsed_ms, destination, outcome, attempts, mirror, size_bytes, sha256, error_kind, error_summary"

// Ledger is the SQLite-backed history store. It is safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	ledger := &Ledger{db: db, path: path}
	if err := ledger.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// OpenFromConfig opens the ledger under the configured history directory.
func OpenFromConfig(cfg *config.Config) (*Ledger, error) {
	return Open(cfg.HistoryPath())
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: ledger has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Append adds rec to the ledger and returns its row id.
func (l *Ledger) Append(ctx context.Context, rec Record) (int64, error) {
	if _, err := ParseOutcome(string(rec.Outcome)); err != nil {
		return 0, err
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := l.db.ExecContext(ctx,
			`INSERT INTO history (task_id, kind, rom_id, slug, title, platform, region, started_at, elapsed_ms,
				destination, outcome, attempts, mirror, size_bytes, sha256, error_kind, error_summary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.TaskID, rec.Kind, rec.RomID, rec.Slug, rec.Title, rec.Platform, rec.Region,
			rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.Elapsed.Milliseconds(),
			rec.Destination, string(rec.Outcome), rec.Attempts, rec.Mirror, rec.SizeBytes, rec.SHA256,
			rec.ErrorKind, rec.ErrorSummary,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}
	return id, nil
}

// Count returns the number of rows matching filter, ignoring its limit.
func (l *Ledger) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()
	var n int
	err := retryOnBusy(ctx, func() error {
		return l.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM history"+where, args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// LastSuccess returns the most recent successful record for destination.
func (l *Ledger) LastSuccess(ctx context.Context, destination string) (Record, bool, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM history WHERE destination = ? AND outcome = ? ORDER BY id DESC LIMIT 1",
		destination, string(OutcomeSuccess))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("lookup history: %w", err)
	}
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec       Record
		startedAt string
		elapsedMS int64
		outcome   string
	)
	if err := s.Scan(&rec.ID, &rec.TaskID, &rec.Kind, &rec.RomID, &rec.Slug, &rec.Title, &rec.Platform,
		&rec.Region, &startedAt, &elapsedMS, &rec.Destination, &outcome, &rec.Attempts, &rec.Mirror,
		&rec.SizeBytes, &rec.SHA256, &rec.ErrorKind, &rec.ErrorSummary); err != nil {
		return Record{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		rec.StartedAt = t
	}
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	rec.Outcome = Outcome(outcome)
	return rec, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
