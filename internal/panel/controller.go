package panel

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Messages shown for inputs and faults the panel handles itself.
const (
	emptyQuestionNotice     = "Please enter a question about the dashboard."
	transportFailureMessage = "Cannot reach the assistant service. Is the dashboard backend running?"
)

// ChatController runs the submit path: validate, claim the gate, show the
// loading state, call the backend, render the outcome. The gate is released
// on every path, including panics, so one bad exchange never wedges the
// panel.
type ChatController struct {
	backend    Backend
	presenter  Presenter
	gate       *RequestGate
	monitor    *HealthMonitor
	bridge     *SnapshotBridge
	classifier *Classifier
	logger     *zap.Logger
}

// NewChatController creates the controller.
func NewChatController(
	backend Backend,
	presenter Presenter,
	gate *RequestGate,
	monitor *HealthMonitor,
	bridge *SnapshotBridge,
	classifier *Classifier,
	logger *zap.Logger,
) *ChatController {
	return &ChatController{
		backend:    backend,
		presenter:  presenter,
		gate:       gate,
		monitor:    monitor,
		bridge:     bridge,
		classifier: classifier,
		logger:     logger,
	}
}

// Submit handles one question. Whitespace-only input shows a notice and
// never reaches the backend; a second submit while one is in flight is
// dropped.
func (c *ChatController) Submit(ctx context.Context, input string) {
	question := strings.TrimSpace(input)
	if question == "" {
		c.presenter.ShowNotice(emptyQuestionNotice)
		return
	}

	if !c.gate.TryAcquire() {
		c.logger.Debug("submit dropped, request already in flight")
		return
	}
	defer func() {
		c.gate.Release()
		c.presenter.SetInputEnabled(true)
	}()

	c.presenter.SetInputEnabled(false)
	c.presenter.ShowLoading()

	answer, err := c.backend.Ask(ctx, question, c.bridge.Current())
	if err != nil {
		c.handleFailure(err)
		return
	}

	c.presenter.ShowAnswer(answer)
}

// handleFailure classifies the error. A structured API failure whose
// message matches an offline phrase, or any transport fault, flips the
// availability indicator immediately.
func (c *ChatController) handleFailure(err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if c.classifier.IsOffline(domainErr.Message) {
			c.monitor.ForceOffline(domainErr.Message)
		}
		c.presenter.ShowError(domainErr.Message)
		return
	}

	c.logger.Warn("chat transport failure", zap.Error(err))
	c.monitor.ForceOffline(transportFailureMessage)
	c.presenter.ShowError(transportFailureMessage)
}
