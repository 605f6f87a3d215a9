package port

import (
	"context"

	"github.com/marketdash/dash-assistant-go/internal/domain"
)

// SnapshotStore handles snapshot metadata persistence.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]*domain.Snapshot, error)
	UpdateSummary(ctx context.Context, id, summary, analysisErr string) error
}
