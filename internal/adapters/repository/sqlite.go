package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"
	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists reports in a SQLite database. The full report is
// kept as JSON next to the columns used for listing.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	logger      logger.Logger
}

// OpenSQLite opens (or creates) the database at path and migrates it to the
// latest schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		busyTimeout: defaultBusyTimeout,
		logger:      logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// pragmas and ":memory:" databases are per connection
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.pragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}

	n, err := s.Count(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.UpdateStoreRecords(n)
	s.logger.Info(ctx, "report store opened", logger.String("path", path), logger.Int("reports", n))
	return s, nil
}

func (s *SQLiteStore) pragmas(ctx context.Context) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: source: %w", ErrMigrate, err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: driver: %w", ErrMigrate, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	// m is not closed: closing it would close s.db.
	m.Log = &migrateLogger{l: s.logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: up: %w", ErrMigrate, err)
	}
	return nil
}

// Version returns the applied schema version.
func (s *SQLiteStore) Version() (uint, bool, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, false, err
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return 0, false, err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (s *SQLiteStore) Save(ctx context.Context, r types.TrialReport) error {
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.TrialID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trial_reports (trial_id, subject, frames, valid_frames, duration_s, analyzed_at, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trial_id) DO UPDATE SET
			subject = excluded.subject,
			frames = excluded.frames,
			valid_frames = excluded.valid_frames,
			duration_s = excluded.duration_s,
			analyzed_at = excluded.analyzed_at,
			report_json = excluded.report_json`,
		r.TrialID, r.Subject, r.Frames, r.ValidFrames, r.Duration, r.AnalyzedAt.UnixNano(), string(body),
	)
	if err != nil {
		return s.wrap("save", err)
	}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateStoreRecords(n)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, trialID string) (types.TrialReport, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM trial_reports WHERE trial_id = ?`, trialID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TrialReport{}, fmt.Errorf("%w: %q", ErrNotFound, trialID)
	}
	if err != nil {
		return types.TrialReport{}, s.wrap("get", err)
	}
	var r types.TrialReport
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return types.TrialReport{}, fmt.Errorf("decode report %s: %w", trialID, err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]types.TrialSummary, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT trial_id, subject, frames, valid_frames, duration_s, analyzed_at
		FROM trial_reports
		ORDER BY analyzed_at DESC, trial_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, s.wrap("list", err)
	}
	defer rows.Close()

	var out []types.TrialSummary
	for rows.Next() {
		var (
			sum types.TrialSummary
			at  int64
		)
		if err := rows.Scan(&sum.TrialID, &sum.Subject, &sum.Frames, &sum.ValidFrames, &sum.Duration, &at); err != nil {
			return nil, s.wrap("list", err)
		}
		sum.AnalyzedAt = time.Unix(0, at).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trial_reports`).Scan(&n); err != nil {
		return 0, s.wrap("count", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) wrap(op string, err error) error {
	if strings.Contains(err.Error(), "sql: database is closed") {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// migrateLogger routes migrate's output to the store logger.
type migrateLogger struct {
	l logger.Logger
}

func (m *migrateLogger) Printf(format string, v ...interface{}) {
	m.l.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m *migrateLogger) Verbose() bool { return false }
