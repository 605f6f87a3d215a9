// Package panel implements the assistant panel that rides alongside the
// market dashboard: it tracks backend availability, gates question
// submission to one request at a time, runs the chat exchange, and binds
// saved snapshots to subsequent questions.
//
// The package is presentation-agnostic: everything user-visible goes
// through the Presenter interface, and everything remote goes through
// Backend.
package panel

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Answer is one successful chat exchange.
type Answer struct {
	Text         string
	Model        string
	SnapshotUsed string
}

// DomainError is a structured failure the assistant API returned (the HTTP
// exchange itself worked). Its message is what the failure classifier
// inspects.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// Backend is the remote assistant service.
type Backend interface {
	// Status probes availability. A transport-level failure returns an
	// error; a reachable backend always returns a status.
	Status(ctx context.Context) (Status, error)

	// Ask submits a question. snapshotID may be empty (backend picks the
	// latest snapshot). Failures the API reported itself come back as
	// *DomainError; anything else is a transport fault.
	Ask(ctx context.Context, question, snapshotID string) (*Answer, error)
}

// Status is the backend's self-reported availability.
type Status struct {
	Online  bool
	Message string
	Model   string
}

// Presenter renders panel state. Implementations must tolerate calls from
// multiple goroutines (monitor ticks and chat outcomes interleave).
type Presenter interface {
	ShowStatus(av Availability, message string)
	ShowLoading()
	ShowAnswer(ans *Answer)
	ShowError(message string)
	ShowNotice(message string)
	ShowSnapshotReady(snapshotID string)
	SetInputEnabled(enabled bool)
}

// Config holds panel tuning knobs.
type Config struct {
	ProbeInterval  time.Duration
	OfflinePhrases []string
}

// Panel wires the monitor, gate, controller and bridge together.
type Panel struct {
	Monitor    *HealthMonitor
	Gate       *RequestGate
	Controller *ChatController
	Bridge     *SnapshotBridge
}

// New assembles a panel over the given backend and presenter. Snapshot
// events arrive through bus.
func New(backend Backend, presenter Presenter, bus *EventBus, cfg Config, logger *zap.Logger) *Panel {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}

	gate := NewRequestGate()
	monitor := NewHealthMonitor(backend, presenter, cfg.ProbeInterval, logger)
	bridge := NewSnapshotBridge(bus.Subscribe(), presenter, logger)
	classifier := NewClassifier(cfg.OfflinePhrases...)
	controller := NewChatController(backend, presenter, gate, monitor, bridge, classifier, logger)

	return &Panel{
		Monitor:    monitor,
		Gate:       gate,
		Controller: controller,
		Bridge:     bridge,
	}
}

// Run starts the background loops (availability probing, snapshot event
// consumption) and blocks until ctx is cancelled.
func (p *Panel) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Monitor.Run(ctx) })
	g.Go(func() error { return p.Bridge.Run(ctx) })
	return g.Wait()
}
