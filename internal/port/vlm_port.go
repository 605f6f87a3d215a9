package port

import (
	"context"

	"github.com/marketdash/dash-assistant-go/internal/domain"
)

// VLMCaller abstracts the vision-language model backend (Ollama).
type VLMCaller interface {
	// Available reports whether the backend is reachable and the model is
	// loaded; failures resolve to (false, reason) rather than an error.
	Available(ctx context.Context) (bool, string)

	// Generate runs one prompt + image through the model.
	Generate(ctx context.Context, prompt, systemPrompt, imageB64 string) (*domain.VLMResult, error)

	Host() string
	Model() string
}
