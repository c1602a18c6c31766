// Package store persists company view snapshots and report metrics history.
package store

import (
	"context"
	"time"

	"frc-research/internal/models"
)

// DataStore defines the interface for snapshot persistence.
type DataStore interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, view *models.CompanyView) (*Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, ticker string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]SnapshotInfo, error)

	// Metrics history
	SaveMetrics(ctx context.Context, ticker string, records []models.MetricsRecord) error
	GetMetrics(ctx context.Context, ticker string) ([]models.MetricsRecord, error)

	// Sync
	GetLastSync(ticker string) time.Time
	SetLastSync(ticker string, t time.Time) error

	Close() error
}

// Snapshot is a stored company view.
type Snapshot struct {
	SnapshotInfo
	View *models.CompanyView `json:"view"`
}

// SnapshotInfo is the listing row of a snapshot.
type SnapshotInfo struct {
	ID        string                `json:"id"`
	Ticker    string                `json:"ticker"`
	Name      string                `json:"name"`
	Status    models.CoverageStatus `json:"status"`
	Sections  models.Sections       `json:"sections"`
	Reports   int                   `json:"reports"`
	CreatedAt time.Time             `json:"created_at"`
}

// SnapshotFilter filters snapshot listings.
type SnapshotFilter struct {
	Ticker string
	Since  time.Time
	Limit  int
}
