// Package postgres provides Postgres-backed persistence, pointed at a
// Supabase database in the hosted setup.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagelift/pagelift/internal/seo"
)

// ScanStoreConfig controls the Postgres connection pool.
type ScanStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ScanStore persists scans and page records in Postgres. Expected schema:
//
//	CREATE TABLE scans (
//		id TEXT PRIMARY KEY,
//		status TEXT NOT NULL,
//		submitted_at TIMESTAMPTZ NOT NULL,
//		started_at TIMESTAMPTZ,
//		finished_at TIMESTAMPTZ,
//		error_text TEXT NOT NULL DEFAULT '',
//		parameters JSONB NOT NULL,
//		urls_discovered INT NOT NULL DEFAULT 0,
//		pages_fetched INT NOT NULL DEFAULT 0,
//		pages_failed INT NOT NULL DEFAULT 0
//	);
//
//	CREATE TABLE scan_pages (
//		scan_id TEXT NOT NULL REFERENCES scans(id),
//		url TEXT NOT NULL,
//		title TEXT NOT NULL DEFAULT '',
//		meta_description TEXT NOT NULL DEFAULT '',
//		word_count INT NOT NULL DEFAULT 0,
//		h1_count INT NOT NULL DEFAULT 0,
//		status_code INT NOT NULL DEFAULT 0,
//		fetched_at TIMESTAMPTZ NOT NULL,
//		duration_ms BIGINT NOT NULL DEFAULT 0,
//		content_hash TEXT NOT NULL DEFAULT '',
//		snapshot_uri TEXT NOT NULL DEFAULT '',
//		score INT NOT NULL DEFAULT 0,
//		used_headless BOOLEAN NOT NULL DEFAULT FALSE
//	);
type ScanStore struct {
	pool pgxPool
}

var _ seo.ScanStore = (*ScanStore)(nil)

// NewScanStore connects a pool using the provided config.
func NewScanStore(ctx context.Context, cfg ScanStoreConfig) (*ScanStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ScanStore{pool: pool}, nil
}

// NewScanStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewScanStoreWithPool(pool pgxPool) (*ScanStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ScanStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ScanStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateScan inserts a new scan row.
func (s *ScanStore) CreateScan(ctx context.Context, scan seo.Scan) error {
	params, err := json.Marshal(scan.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	query := `
INSERT INTO scans (id, status, submitted_at, error_text, parameters)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, scan.ID, string(scan.Status), scan.Submitted, scan.ErrorText, params); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// UpdateScanStatus updates status, error text and counters. Started and
// finished timestamps are set once, on the transition that reaches them.
func (s *ScanStore) UpdateScanStatus(
	ctx context.Context,
	scanID string,
	status seo.ScanStatus,
	errText string,
	counters seo.ScanCounters,
) error {
	query := `
UPDATE scans SET
	status = $2,
	error_text = $3,
	urls_discovered = $4,
	pages_fetched = $5,
	pages_failed = $6,
	started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, NOW()) ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('succeeded', 'failed', 'canceled') THEN COALESCE(finished_at, NOW()) ELSE finished_at END
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		scanID,
		string(status),
		errText,
		counters.URLsDiscovered,
		counters.PagesFetched,
		counters.PagesFailed,
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// RecordPage inserts a page row.
func (s *ScanStore) RecordPage(ctx context.Context, page seo.PageRecord) error {
	query := `
INSERT INTO scan_pages (
	scan_id, url, title, meta_description, word_count, h1_count,
	status_code, fetched_at, duration_ms, content_hash, snapshot_uri,
	score, used_headless
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.pool.Exec(ctx, query,
		page.ScanID,
		page.URL,
		page.Title,
		page.MetaDescription,
		page.WordCount,
		page.H1Count,
		page.StatusCode,
		page.FetchedAt,
		page.DurationMs,
		page.ContentHash,
		page.SnapshotURI,
		page.Score,
		page.UsedHeadless,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

const scanColumns = `id, status, submitted_at, started_at, finished_at, error_text, parameters,
	urls_discovered, pages_fetched, pages_failed`

// GetScan fetches a scan by ID or returns seo.ErrNotFound.
func (s *ScanStore) GetScan(ctx context.Context, scanID string) (seo.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`
	scan, err := scanRow(s.pool.QueryRow(ctx, query, scanID))
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.Scan{}, seo.ErrNotFound
	}
	if err != nil {
		return seo.Scan{}, fmt.Errorf("select scan: %w", err)
	}
	return scan, nil
}

// ListScans returns scans ordered newest first.
func (s *ScanStore) ListScans(ctx context.Context, limit, offset int) ([]seo.Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scanColumns + ` FROM scans ORDER BY submitted_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select scans: %w", err)
	}
	defer rows.Close()

	scans := make([]seo.Scan, 0, limit)
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return scans, nil
}

// ListPages returns all page rows for a scan in fetch order.
func (s *ScanStore) ListPages(ctx context.Context, scanID string) ([]seo.PageRecord, error) {
	query := `
SELECT scan_id, url, title, meta_description, word_count, h1_count,
	status_code, fetched_at, duration_ms, content_hash, snapshot_uri,
	score, used_headless
FROM scan_pages WHERE scan_id = $1 ORDER BY fetched_at, url`
	rows, err := s.pool.Query(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()

	var pages []seo.PageRecord
	for rows.Next() {
		var p seo.PageRecord
		if err := rows.Scan(
			&p.ScanID,
			&p.URL,
			&p.Title,
			&p.MetaDescription,
			&p.WordCount,
			&p.H1Count,
			&p.StatusCode,
			&p.FetchedAt,
			&p.DurationMs,
			&p.ContentHash,
			&p.SnapshotURI,
			&p.Score,
			&p.UsedHeadless,
		); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

func scanRow(row pgx.Row) (seo.Scan, error) {
	var (
		scan   seo.Scan
		status string
		params []byte
	)
	err := row.Scan(
		&scan.ID,
		&status,
		&scan.Submitted,
		&scan.Started,
		&scan.Finished,
		&scan.ErrorText,
		&params,
		&scan.Counters.URLsDiscovered,
		&scan.Counters.PagesFetched,
		&scan.Counters.PagesFailed,
	)
	if err != nil {
		return seo.Scan{}, err
	}
	scan.Status = seo.ScanStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &scan.Parameters); err != nil {
			return seo.Scan{}, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	return scan, nil
}
