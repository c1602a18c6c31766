package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"frc-research/internal/errors"
	"frc-research/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
	now       func() time.Time
}

var _ DataStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
		now:       time.Now,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		name TEXT,
		status TEXT,
		sections TEXT NOT NULL,
		reports INTEGER NOT NULL DEFAULT 0,
		view TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_ticker_created ON snapshots(ticker, created_at);

	CREATE TABLE IF NOT EXISTS report_metrics (
		ticker TEXT NOT NULL,
		report_id TEXT NOT NULL,
		report_title TEXT,
		report_type TEXT,
		publication_date DATETIME,
		price_on_release REAL NOT NULL DEFAULT 0,
		price_after_30_days REAL NOT NULL DEFAULT 0,
		price_change_30_day_pct REAL NOT NULL DEFAULT 0,
		volume_change_pre_post_30_day_pct REAL NOT NULL DEFAULT 0,
		avg_volume_pre_30_days REAL NOT NULL DEFAULT 0,
		avg_volume_post_30_days REAL NOT NULL DEFAULT 0,
		avg_volume_post_5_days REAL NOT NULL DEFAULT 0,
		avg_volume_post_10_days REAL NOT NULL DEFAULT 0,
		price_change_5_day_pct REAL NOT NULL DEFAULT 0,
		price_change_10_day_pct REAL NOT NULL DEFAULT 0,
		price_change_15_day_pct REAL NOT NULL DEFAULT 0,
		annualized_volatility_pct REAL NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (ticker, report_id)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		ticker TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Snapshot Methods
// ============================================================================

// SaveSnapshot stores view under a new ID.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, view *models.CompanyView) (*Snapshot, error) {
	if view == nil || view.Company.Ticker == "" {
		return nil, errors.NewValidationError("view", nil, "snapshot needs a company ticker")
	}

	body, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode view: %w", err)
	}
	sections, err := json.Marshal(view.Sections)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sections: %w", err)
	}

	snap := &Snapshot{
		SnapshotInfo: SnapshotInfo{
			ID:        uuid.NewString(),
			Ticker:    view.Company.Ticker,
			Name:      view.Company.Name,
			Status:    view.Company.Status,
			Sections:  view.Sections,
			Reports:   len(view.Metrics),
			CreatedAt: s.now().UTC(),
		},
		View: view,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, ticker, name, status, sections, reports, view, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Ticker, snap.Name, string(snap.Status), string(sections), snap.Reports, string(body), snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshot returns the snapshot with the given ID or errors.ErrNotFound.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, name, status, sections, reports, created_at, view
		FROM snapshots WHERE id = ?
	`, id)
	return scanSnapshot(row, "snapshot "+id)
}

// LatestSnapshot returns the newest snapshot of ticker or errors.ErrNotFound.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	ticker = models.NormalizeTicker(ticker)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, name, status, sections, reports, created_at, view
		FROM snapshots WHERE ticker = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, ticker)
	return scanSnapshot(row, "snapshot of "+ticker)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner, what string) (*Snapshot, error) {
	var snap Snapshot
	var name, status sql.NullString
	var sections, body string
	err := row.Scan(&snap.ID, &snap.Ticker, &name, &status, &sections, &snap.Reports, &snap.CreatedAt, &body)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.Name = name.String
	snap.Status = models.CoverageStatus(status.String)

	if err := json.Unmarshal([]byte(sections), &snap.Sections); err != nil {
		return nil, errors.NewDataError("snapshot", snap.Ticker, "corrupt sections", err)
	}
	snap.View = &models.CompanyView{}
	if err := json.Unmarshal([]byte(body), snap.View); err != nil {
		return nil, errors.NewDataError("snapshot", snap.Ticker, "corrupt view", err)
	}
	return &snap, nil
}

// ListSnapshots returns snapshot rows, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]SnapshotInfo, error) {
	query := `SELECT id, ticker, name, status, sections, reports, created_at FROM snapshots WHERE 1=1`
	var args []interface{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, models.NormalizeTicker(filter.Ticker))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var name, status sql.NullString
		var sections string
		if err := rows.Scan(&info.ID, &info.Ticker, &name, &status, &sections, &info.Reports, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.Name = name.String
		info.Status = models.CoverageStatus(status.String)
		if err := json.Unmarshal([]byte(sections), &info.Sections); err != nil {
			return nil, errors.NewDataError("snapshot", info.Ticker, "corrupt sections", err)
		}
		out = append(out, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// ============================================================================
// Metrics Methods
// ============================================================================

const metricsColumns = `report_id, report_title, report_type, publication_date,
	price_on_release, price_after_30_days, price_change_30_day_pct,
	volume_change_pre_post_30_day_pct, avg_volume_pre_30_days, avg_volume_post_30_days,
	avg_volume_post_5_days, avg_volume_post_10_days, price_change_5_day_pct,
	price_change_10_day_pct, price_change_15_day_pct, annualized_volatility_pct`

// SaveMetrics upserts the report metrics of ticker.
func (s *SQLiteStore) SaveMetrics(ctx context.Context, ticker string, records []models.MetricsRecord) error {
	if len(records) == 0 {
		return nil
	}
	ticker = models.NormalizeTicker(ticker)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO report_metrics (ticker, `+metricsColumns+`, updated_at)
		VALUES (?`+strings.Repeat(", ?", 17)+`)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for _, r := range records {
		var published sql.NullTime
		if r.HasPublicationDate() {
			published = sql.NullTime{Time: r.PublicationDate.UTC(), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, ticker,
			r.ReportID, r.ReportTitle, r.ReportType, published,
			r.PriceOnRelease, r.PriceAfter30Days, r.PriceChange30DayPct,
			r.VolumeChangePrePost30DayPct, r.AvgVolumePre30Days, r.AvgVolumePost30Days,
			r.AvgVolumePost5Days, r.AvgVolumePost10Days, r.PriceChange5DayPct,
			r.PriceChange10DayPct, r.PriceChange15DayPct, r.AnnualizedVolatilityPct,
			now)
		if err != nil {
			return fmt.Errorf("failed to insert metrics for %s: %w", r.ReportID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMetrics returns the stored metrics of ticker ordered by publication date.
func (s *SQLiteStore) GetMetrics(ctx context.Context, ticker string) ([]models.MetricsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+metricsColumns+`
		FROM report_metrics
		WHERE ticker = ?
		ORDER BY publication_date IS NULL, publication_date ASC, report_id ASC
	`, models.NormalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	records := []models.MetricsRecord{}
	for rows.Next() {
		var r models.MetricsRecord
		var title, kind sql.NullString
		var published sql.NullTime
		if err := rows.Scan(&r.ReportID, &title, &kind, &published,
			&r.PriceOnRelease, &r.PriceAfter30Days, &r.PriceChange30DayPct,
			&r.VolumeChangePrePost30DayPct, &r.AvgVolumePre30Days, &r.AvgVolumePost30Days,
			&r.AvgVolumePost5Days, &r.AvgVolumePost10Days, &r.PriceChange5DayPct,
			&r.PriceChange10DayPct, &r.PriceChange15DayPct, &r.AnnualizedVolatilityPct); err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		r.ReportTitle = title.String
		r.ReportType = kind.String
		if published.Valid {
			r.PublicationDate = published.Time.UTC()
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	return records, nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns when ticker was last refreshed.
func (s *SQLiteStore) GetLastSync(ticker string) time.Time {
	ticker = models.NormalizeTicker(ticker)
	s.mu.RLock()
	if t, ok := s.syncTimes[ticker]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE ticker = ?
	`, ticker).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[ticker] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync records when ticker was last refreshed.
func (s *SQLiteStore) SetLastSync(ticker string, t time.Time) error {
	ticker = models.NormalizeTicker(ticker)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (ticker, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, ticker, t.UTC(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[ticker] = t.UTC()
	s.mu.Unlock()

	return nil
}
