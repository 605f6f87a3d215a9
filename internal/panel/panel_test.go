package panel_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/marketdash/dash-assistant-go/internal/panel"
)

type stubBackend struct {
	mu sync.Mutex

	status    panel.Status
	statusErr error

	answer  *panel.Answer
	askErr  error
	askGate chan struct{}

	askCalls       int
	lastQuestion   string
	lastSnapshotID string
}

func (b *stubBackend) Status(ctx context.Context) (panel.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, b.statusErr
}

func (b *stubBackend) Ask(ctx context.Context, question, snapshotID string) (*panel.Answer, error) {
	b.mu.Lock()
	b.askCalls++
	b.lastQuestion = question
	b.lastSnapshotID = snapshotID
	gate := b.askGate
	answer, err := b.answer, b.askErr
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return answer, err
}

func (b *stubBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.askCalls
}

type recordingPresenter struct {
	mu     sync.Mutex
	events []string

	statusCalls   int
	lastState     panel.Availability
	lastStatusMsg string
	lastError     string
	lastNotice    string
	lastAnswer    *panel.Answer
	inputEnabled  []bool
}

func (p *recordingPresenter) record(ev string) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPresenter) ShowStatus(av panel.Availability, message string) {
	p.mu.Lock()
	p.statusCalls++
	p.lastState = av
	p.lastStatusMsg = message
	p.mu.Unlock()
	p.record("status:" + av.String())
}

func (p *recordingPresenter) ShowLoading() { p.record("loading") }

func (p *recordingPresenter) ShowAnswer(ans *panel.Answer) {
	p.mu.Lock()
	p.lastAnswer = ans
	p.mu.Unlock()
	p.record("answer")
}

func (p *recordingPresenter) ShowError(message string) {
	p.mu.Lock()
	p.lastError = message
	p.mu.Unlock()
	p.record("error")
}

func (p *recordingPresenter) ShowNotice(message string) {
	p.mu.Lock()
	p.lastNotice = message
	p.mu.Unlock()
	p.record("notice")
}

func (p *recordingPresenter) ShowSnapshotReady(snapshotID string) {
	p.record("snapshot:" + snapshotID)
}

func (p *recordingPresenter) SetInputEnabled(enabled bool) {
	p.mu.Lock()
	p.inputEnabled = append(p.inputEnabled, enabled)
	p.mu.Unlock()
	if enabled {
		p.record("input:on")
	} else {
		p.record("input:off")
	}
}

func (p *recordingPresenter) sequence() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func newTestPanel(t *testing.T, backend *stubBackend) (*panel.Panel, *recordingPresenter, *panel.EventBus) {
	t.Helper()
	presenter := &recordingPresenter{}
	bus := panel.NewEventBus()
	p := panel.New(backend, presenter, bus, panel.Config{ProbeInterval: time.Hour}, zap.NewNop())
	return p, presenter, bus
}

func TestSubmitWhitespaceOnlyShowsNoticeWithoutCallingBackend(t *testing.T) {
	backend := &stubBackend{}
	p, presenter, _ := newTestPanel(t, backend)

	p.Controller.Submit(context.Background(), "   \t  ")

	if backend.calls() != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.calls())
	}
	if presenter.lastNotice == "" {
		t.Fatal("expected a notice for empty input")
	}
	if p.Gate.Busy() {
		t.Fatal("gate should not be busy after rejected input")
	}
}

func TestSubmitSuccessRendersAnswer(t *testing.T) {
	backend := &stubBackend{
		answer: &panel.Answer{Text: "Gold is rising", Model: "llava", SnapshotUsed: "snap-1"},
	}
	p, presenter, _ := newTestPanel(t, backend)

	p.Controller.Submit(context.Background(), "  Is gold going up?  ")

	if backend.lastQuestion != "Is gold going up?" {
		t.Fatalf("question not trimmed: %q", backend.lastQuestion)
	}
	if presenter.lastAnswer == nil || presenter.lastAnswer.Text != "Gold is rising" {
		t.Fatalf("unexpected answer: %+v", presenter.lastAnswer)
	}
	if presenter.lastAnswer.Model != "llava" {
		t.Fatalf("unexpected model: %q", presenter.lastAnswer.Model)
	}
	if p.Gate.Busy() {
		t.Fatal("gate should be released after success")
	}

	seq := presenter.sequence()
	loadingAt, answerAt := -1, -1
	for i, ev := range seq {
		switch ev {
		case "loading":
			loadingAt = i
		case "answer":
			answerAt = i
		}
	}
	if loadingAt == -1 || answerAt == -1 || loadingAt > answerAt {
		t.Fatalf("loading must render before the answer, got %v", seq)
	}
}

func TestSubmitDisablesInputDuringRequest(t *testing.T) {
	backend := &stubBackend{answer: &panel.Answer{Text: "ok"}}
	p, presenter, _ := newTestPanel(t, backend)

	p.Controller.Submit(context.Background(), "What about silver?")

	if len(presenter.inputEnabled) != 2 || presenter.inputEnabled[0] || !presenter.inputEnabled[1] {
		t.Fatalf("expected input disabled then re-enabled, got %v", presenter.inputEnabled)
	}
	if p.Gate.Busy() {
		t.Fatal("gate should be released")
	}
}

func TestSubmitOfflineFailureForcesOffline(t *testing.T) {
	backend := &stubBackend{
		status: panel.Status{Online: true, Message: "Ollama is running and model is available"},
		askErr: &panel.DomainError{Message: "Cannot connect to Ollama. Is it running? Start with: ollama serve"},
	}
	p, presenter, _ := newTestPanel(t, backend)

	p.Monitor.Probe(context.Background())
	if p.Monitor.State() != panel.AvailabilityOnline {
		t.Fatalf("expected online after probe, got %s", p.Monitor.State())
	}

	p.Controller.Submit(context.Background(), "Why is oil down?")

	if p.Monitor.State() != panel.AvailabilityOffline {
		t.Fatalf("expected offline after connection failure, got %s", p.Monitor.State())
	}
	if !strings.Contains(presenter.lastError, "Cannot connect to Ollama") {
		t.Fatalf("unexpected error message: %q", presenter.lastError)
	}
	if p.Gate.Busy() {
		t.Fatal("gate should be released after failure")
	}
}

func TestSubmitGenericDomainFailureKeepsAvailability(t *testing.T) {
	backend := &stubBackend{
		status: panel.Status{Online: true, Message: "Ollama is running and model is available"},
		askErr: &panel.DomainError{Message: "No snapshots available. Save a snapshot first."},
	}
	p, presenter, _ := newTestPanel(t, backend)

	p.Monitor.Probe(context.Background())
	p.Controller.Submit(context.Background(), "Analyze the latest snapshot")

	if p.Monitor.State() != panel.AvailabilityOnline {
		t.Fatalf("request-specific failure must not flip availability, got %s", p.Monitor.State())
	}
	if !strings.Contains(presenter.lastError, "No snapshots available") {
		t.Fatalf("unexpected error message: %q", presenter.lastError)
	}
}

func TestSubmitTransportFailureForcesOffline(t *testing.T) {
	backend := &stubBackend{
		status: panel.Status{Online: true, Message: "Ollama is running and model is available"},
		askErr: errors.New("dial tcp 127.0.0.1:8000: connect: network unreachable"),
	}
	p, presenter, _ := newTestPanel(t, backend)

	p.Monitor.Probe(context.Background())
	p.Controller.Submit(context.Background(), "Is silver volatile?")

	if p.Monitor.State() != panel.AvailabilityOffline {
		t.Fatalf("expected offline after transport fault, got %s", p.Monitor.State())
	}
	if presenter.lastError == "" {
		t.Fatal("expected an error message for the transport fault")
	}
}

func TestSubmitWhileBusyIsDropped(t *testing.T) {
	gate := make(chan struct{})
	backend := &stubBackend{
		answer:  &panel.Answer{Text: "done"},
		askGate: gate,
	}
	p, _, _ := newTestPanel(t, backend)

	done := make(chan struct{})
	go func() {
		p.Controller.Submit(context.Background(), "First question")
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for backend.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("first request never reached the backend")
		case <-time.After(time.Millisecond):
		}
	}

	p.Controller.Submit(context.Background(), "Second question")
	if backend.calls() != 1 {
		t.Fatalf("second submit should be dropped while busy, got %d calls", backend.calls())
	}

	close(gate)
	<-done

	if p.Gate.Busy() {
		t.Fatal("gate should be released after the first request finishes")
	}
}

func TestSubmitReleasesGateOnPanic(t *testing.T) {
	backend := &stubBackend{}
	p, _, _ := newTestPanel(t, backend)
	controller := panel.NewChatController(
		panicBackend{}, &recordingPresenter{}, p.Gate, p.Monitor, p.Bridge, panel.NewClassifier(), zap.NewNop(),
	)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		controller.Submit(context.Background(), "trigger the panic")
	}()

	if p.Gate.Busy() {
		t.Fatal("gate must be released even when the backend panics")
	}
}

type panicBackend struct{}

func (panicBackend) Status(ctx context.Context) (panel.Status, error) {
	return panel.Status{}, nil
}

func (panicBackend) Ask(ctx context.Context, question, snapshotID string) (*panel.Answer, error) {
	panic("backend exploded")
}

func TestMonitorStartupProbeRendersOffline(t *testing.T) {
	backend := &stubBackend{statusErr: errors.New("connection refused")}
	p, presenter, _ := newTestPanel(t, backend)

	p.Monitor.Probe(context.Background())

	if p.Monitor.State() != panel.AvailabilityOffline {
		t.Fatalf("expected offline, got %s", p.Monitor.State())
	}
	if presenter.statusCalls != 1 || presenter.lastState != panel.AvailabilityOffline {
		t.Fatalf("expected one offline render, got %d calls state %s", presenter.statusCalls, presenter.lastState)
	}
}

func TestMonitorProbeBoundsItsOwnDeadline(t *testing.T) {
	probed := make(chan time.Duration, 1)
	backend := &deadlineBackend{probed: probed}
	presenter := &recordingPresenter{}
	monitor := panel.NewHealthMonitor(backend, presenter, time.Hour, zap.NewNop())

	monitor.Probe(context.Background())

	select {
	case remaining := <-probed:
		if remaining <= 0 || remaining > 30*time.Second {
			t.Fatalf("probe deadline should be short, got %v", remaining)
		}
	default:
		t.Fatal("probe never reached the backend")
	}
}

type deadlineBackend struct {
	probed chan time.Duration
}

func (b *deadlineBackend) Status(ctx context.Context) (panel.Status, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		b.probed <- 0
	} else {
		b.probed <- time.Until(deadline)
	}
	return panel.Status{Online: true, Message: "ok"}, nil
}

func (b *deadlineBackend) Ask(ctx context.Context, question, snapshotID string) (*panel.Answer, error) {
	return nil, errors.New("not used")
}

func TestMonitorRendersOnlyOnStateChange(t *testing.T) {
	backend := &stubBackend{
		status: panel.Status{Online: true, Message: "Ollama is running and model is available"},
	}
	p, presenter, _ := newTestPanel(t, backend)

	p.Monitor.Probe(context.Background())
	p.Monitor.Probe(context.Background())
	p.Monitor.Probe(context.Background())

	if presenter.statusCalls != 1 {
		t.Fatalf("steady state must not repaint, got %d renders", presenter.statusCalls)
	}

	backend.mu.Lock()
	backend.statusErr = errors.New("connection refused")
	backend.mu.Unlock()

	p.Monitor.Probe(context.Background())
	if presenter.statusCalls != 2 || presenter.lastState != panel.AvailabilityOffline {
		t.Fatalf("expected a second render for the offline transition, got %d", presenter.statusCalls)
	}
}

func TestBridgeKeepsLatestSnapshot(t *testing.T) {
	presenter := &recordingPresenter{}
	bus := panel.NewEventBus()
	bridge := panel.NewSnapshotBridge(bus.Subscribe(), presenter, zap.NewNop())

	if bridge.Current() != "" {
		t.Fatalf("expected no snapshot initially, got %q", bridge.Current())
	}

	bridge.Accept(panel.SnapshotSaved{SnapshotID: "snap-42"})
	if bridge.Current() != "snap-42" {
		t.Fatalf("expected snap-42, got %q", bridge.Current())
	}

	bridge.Accept(panel.SnapshotSaved{SnapshotID: "snap-77"})
	if bridge.Current() != "snap-77" {
		t.Fatalf("newer snapshot must replace the older one, got %q", bridge.Current())
	}

	bridge.Accept(panel.SnapshotSaved{})
	if bridge.Current() != "snap-77" {
		t.Fatalf("empty event must not clear the snapshot, got %q", bridge.Current())
	}
}

func TestBridgeDeliversSnapshotToChat(t *testing.T) {
	backend := &stubBackend{answer: &panel.Answer{Text: "ok"}}
	p, presenter, _ := newTestPanel(t, backend)

	p.Bridge.Accept(panel.SnapshotSaved{SnapshotID: "snap-9"})
	p.Controller.Submit(context.Background(), "What changed?")

	if backend.lastSnapshotID != "snap-9" {
		t.Fatalf("expected snapshot snap-9 attached, got %q", backend.lastSnapshotID)
	}

	found := false
	for _, ev := range presenter.sequence() {
		if ev == "snapshot:snap-9" {
			found = true
		}
	}
	if !found {
		t.Fatal("presenter was not told the snapshot is attachable")
	}
}

func TestBridgeRunConsumesBusEvents(t *testing.T) {
	backend := &stubBackend{}
	p, presenter, bus := newTestPanel(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Bridge.Run(ctx)
		close(done)
	}()

	bus.Publish(panel.SnapshotSaved{SnapshotID: "snap-abc"})

	deadline := time.After(2 * time.Second)
	for p.Bridge.Current() != "snap-abc" {
		select {
		case <-deadline:
			t.Fatalf("bridge never consumed the event, current %q", p.Bridge.Current())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
	_ = presenter
}

func TestGateEnabledRequiresMinimumLength(t *testing.T) {
	gate := panel.NewRequestGate()

	cases := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"  ", false},
		{"hi", false},
		{" hi ", false},
		{"oil", true},
		{"  why is gold up  ", true},
	}
	for _, tc := range cases {
		if got := gate.Enabled(tc.input); got != tc.want {
			t.Errorf("Enabled(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}

	if !gate.TryAcquire() {
		t.Fatal("idle gate should acquire")
	}
	if gate.Enabled("why is gold up") {
		t.Fatal("busy gate must disable input regardless of validity")
	}
	gate.Release()
	if !gate.Enabled("why is gold up") {
		t.Fatal("released gate should enable valid input again")
	}
}

func TestClassifierMatchesPhrasesCaseInsensitively(t *testing.T) {
	c := panel.NewClassifier()

	offline := []string{
		"Cannot connect to Ollama. Is it running? Start with: ollama serve",
		"Ollama server timeout",
		"Lost connection to Ollama. Is it still running?",
		"dial tcp: CONNECTION REFUSED",
	}
	for _, msg := range offline {
		if !c.IsOffline(msg) {
			t.Errorf("IsOffline(%q) = false, want true", msg)
		}
	}

	online := []string{
		"No snapshots available. Save a snapshot first.",
		"Invalid JSON in request body",
		"",
	}
	for _, msg := range online {
		if c.IsOffline(msg) {
			t.Errorf("IsOffline(%q) = true, want false", msg)
		}
	}

	custom := panel.NewClassifier("model crashed")
	if !custom.IsOffline("The MODEL CRASHED during inference") {
		t.Error("custom phrase should match case-insensitively")
	}
	if custom.IsOffline("Cannot connect to Ollama") {
		t.Error("custom phrases replace the defaults")
	}
}

func TestEventBusPublishNeverBlocks(t *testing.T) {
	bus := panel.NewEventBus()
	ch := bus.Subscribe()

	for i := 0; i < 100; i++ {
		bus.Publish(panel.SnapshotSaved{SnapshotID: "snap"})
	}

	select {
	case ev := <-ch:
		if ev.SnapshotID != "snap" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("subscriber should have buffered events")
	}
}
