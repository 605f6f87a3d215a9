package panel

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// SnapshotBridge remembers the most recently saved snapshot so subsequent
// questions reference it. Once a snapshot id is set it is only ever replaced
// by a newer one, never cleared.
type SnapshotBridge struct {
	events    <-chan SnapshotSaved
	presenter Presenter
	logger    *zap.Logger

	mu      sync.Mutex
	current string
}

// NewSnapshotBridge creates a bridge consuming events.
func NewSnapshotBridge(events <-chan SnapshotSaved, presenter Presenter, logger *zap.Logger) *SnapshotBridge {
	return &SnapshotBridge{
		events:    events,
		presenter: presenter,
		logger:    logger,
	}
}

// Current returns the snapshot id questions should reference, empty when no
// snapshot has been saved yet.
func (b *SnapshotBridge) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Accept records a saved snapshot and tells the presenter it is attachable.
func (b *SnapshotBridge) Accept(ev SnapshotSaved) {
	if ev.SnapshotID == "" {
		return
	}

	b.mu.Lock()
	b.current = ev.SnapshotID
	b.mu.Unlock()

	b.logger.Info("snapshot bound to chat", zap.String("snapshot_id", ev.SnapshotID))
	b.presenter.ShowSnapshotReady(ev.SnapshotID)
}

// Run consumes snapshot events until ctx is cancelled.
func (b *SnapshotBridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-b.events:
			if !ok {
				return nil
			}
			b.Accept(ev)
		}
	}
}
