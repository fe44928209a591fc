package sqlite

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/modelrelay/relay/internal/usage"
)

//go:embed migrations/*.sql
var fs embed.FS

// Store persists usage records in a local sqlite database.
type Store struct {
	db *sqlx.DB
}

func New(dsn string) (*Store, error) {
	// e.g. dsn = "file:relay.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return err
	}

	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

func (s *Store) Insert(ctx context.Context, rec *usage.Record) error {
	query := `
	INSERT INTO usage_records (
		id, provider_id, model, input_tokens, output_tokens,
		estimated, latency_ms, is_streamed, success, error_message, created_at
	) VALUES (
		:id, :provider_id, :model, :input_tokens, :output_tokens,
		:estimated, :latency_ms, :is_streamed, :success, :error_message, :created_at
	)`
	_, err := s.db.NamedExecContext(ctx, query, rec)
	return err
}

// Recent returns the latest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]usage.Record, error) {
	var recs []usage.Record
	query := `SELECT * FROM usage_records ORDER BY created_at DESC LIMIT ?`
	err := s.db.SelectContext(ctx, &recs, query, limit)
	return recs, err
}

// DailyStats aggregates token totals per provider per day.
func (s *Store) DailyStats(ctx context.Context, days int) ([]usage.DailyStat, error) {
	var stats []usage.DailyStat
	query := `
		SELECT
			DATE(created_at) as date,
			provider_id,
			COUNT(*) as total_requests,
			SUM(input_tokens + output_tokens) as total_tokens,
			AVG(latency_ms) as avg_latency
		FROM usage_records
		WHERE created_at >= DATE('now', ?)
		GROUP BY date, provider_id
		ORDER BY date DESC
	`
	err := s.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
