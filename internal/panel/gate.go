package panel

import (
	"strings"
	"sync/atomic"
)

// MinQuestionLen is the minimum trimmed question length before the submit
// control enables.
const MinQuestionLen = 3

// RequestGate allows exactly one chat request in flight. A compare-and-swap
// on acquisition is the only cross-goroutine coordination the panel needs.
type RequestGate struct {
	busy atomic.Bool
}

// NewRequestGate creates an idle gate.
func NewRequestGate() *RequestGate {
	return &RequestGate{}
}

// TryAcquire claims the gate. Returns false when a request is already in
// flight.
func (g *RequestGate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the gate. Safe to call from a deferred function so every
// submit path, including panics, releases it.
func (g *RequestGate) Release() {
	g.busy.Store(false)
}

// Busy reports whether a request is in flight.
func (g *RequestGate) Busy() bool {
	return g.busy.Load()
}

// ValidQuestion reports whether the trimmed input is long enough to submit.
func ValidQuestion(input string) bool {
	return len(strings.TrimSpace(input)) >= MinQuestionLen
}

// Enabled is the submit-control state: valid input and nothing in flight.
func (g *RequestGate) Enabled(input string) bool {
	return ValidQuestion(input) && !g.Busy()
}
