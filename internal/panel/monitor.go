package panel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Availability is the panel's view of the backend.
type Availability int

const (
	// AvailabilityUnknown is the state before the first probe completes.
	AvailabilityUnknown Availability = iota
	AvailabilityOnline
	AvailabilityOffline
)

func (a Availability) String() string {
	switch a {
	case AvailabilityOnline:
		return "online"
	case AvailabilityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// HealthMonitor polls the backend at a fixed interval and keeps the
// presenter's status indicator current. Chat failures that look like
// availability problems push the state to offline immediately via
// ForceOffline instead of waiting for the next tick.
type HealthMonitor struct {
	backend   Backend
	presenter Presenter
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	state   Availability
	message string
}

// NewHealthMonitor creates a monitor in the unknown state.
func NewHealthMonitor(backend Backend, presenter Presenter, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		backend:   backend,
		presenter: presenter,
		interval:  interval,
		logger:    logger,
		state:     AvailabilityUnknown,
	}
}

// State returns the current availability.
func (m *HealthMonitor) State() Availability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Message returns the last status message.
func (m *HealthMonitor) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

// probeTimeout bounds one status check. The backend answers its probe in
// seconds when healthy; a hung endpoint must not stall the tick cycle for
// the chat client's much longer request timeout.
const probeTimeout = 10 * time.Second

// Probe checks the backend once and updates the indicator.
func (m *HealthMonitor) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := m.backend.Status(ctx)
	if err != nil {
		m.set(AvailabilityOffline, "Cannot reach the assistant service")
		return
	}
	if status.Online {
		m.set(AvailabilityOnline, status.Message)
		return
	}
	m.set(AvailabilityOffline, status.Message)
}

// ForceOffline flips the indicator to offline without waiting for the next
// probe. Used when a chat failure already proved the backend is gone.
func (m *HealthMonitor) ForceOffline(message string) {
	m.set(AvailabilityOffline, message)
}

// set updates the state and renders only on change, so a steady backend
// does not repaint the indicator every tick.
func (m *HealthMonitor) set(state Availability, message string) {
	m.mu.Lock()
	changed := state != m.state
	m.state = state
	m.message = message
	m.mu.Unlock()

	if changed {
		m.logger.Info("assistant availability changed",
			zap.String("state", state.String()),
			zap.String("message", message),
		)
		m.presenter.ShowStatus(state, message)
	}
}

// Run probes immediately, then on every tick, until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) error {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
