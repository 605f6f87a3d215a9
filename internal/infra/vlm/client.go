// Package vlm implements the client for Ollama's vision-language models
// (LLaVA) used to answer questions about dashboard snapshots.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("vlm")

const probeTimeout = 5 * time.Second

// Client talks to a local Ollama server. Generate calls go through a
// circuit breaker, retry, and a bulkhead (a local model serves one or two
// requests at a time); the availability probe bypasses all three because it
// is the health signal itself.
type Client struct {
	httpClient *http.Client
	host       string
	model      string
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a VLM client for the given Ollama host and model.
func NewClient(host, model string, timeout time.Duration, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 1
	}
	return &Client{
		// Timeout is applied per call via context so the probe and
		// generate paths can differ.
		httpClient: &http.Client{},
		host:       strings.TrimRight(host, "/"),
		model:      model,
		timeout:    timeout,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(maxConc),
		logger:     logger,
	}
}

// Host returns the configured Ollama base URL.
func (c *Client) Host() string { return c.host }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Available checks whether the Ollama server is running and the configured
// model is present. It never returns an error; all failures resolve to
// (false, reason).
func (c *Client) Available(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false, fmt.Sprintf("Error checking Ollama: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return false, "Ollama server timeout"
		}
		return false, "Cannot connect to Ollama. Is it running? Start with: ollama serve"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("Ollama server returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Sprintf("Error checking Ollama: %v", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}

	// Ollama may report "llava:latest"; match without the tag suffix.
	base := strings.SplitN(c.model, ":", 2)[0]
	for _, n := range names {
		if n == c.model || n == base || strings.HasPrefix(n, base+":") {
			return true, "Ollama is running and model is available"
		}
	}
	return false, fmt.Sprintf("Model '%s' not found. Available: %v", c.model, names)
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// generateResponse is the JSON returned by POST /api/generate (non-streaming).
type generateResponse struct {
	Response        string `json:"response"`
	EvalCount       int    `json:"eval_count"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	TotalDuration   int64  `json:"total_duration"`
	Error           string `json:"error"`
}

// Generate sends a prompt plus one base64-encoded image to the model and
// returns the generated text. The optional system prompt is prepended.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt, imageB64 string) (*domain.VLMResult, error) {
	ctx, span := tracer.Start(ctx, "vlm.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("vlm.model", c.model))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	fullPrompt := prompt
	if systemPrompt != "" {
		fullPrompt = systemPrompt + "\n\n" + prompt
	}

	payload := generateRequest{
		Model:  c.model,
		Prompt: fullPrompt,
		Images: []string{imageB64},
		Stream: false,
		Options: generateOptions{
			Temperature: 0.7,
			TopP:        0.9,
			NumPredict:  1024,
		},
	}

	var out generateResponse

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doGenerate(ctx, payload, &out)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "vlm"}
		}
		return nil, err
	}

	if strings.TrimSpace(out.Response) == "" {
		return nil, fmt.Errorf("empty response from Ollama")
	}

	return &domain.VLMResult{
		Response:      strings.TrimSpace(out.Response),
		Model:         c.model,
		PromptTokens:  out.PromptEvalCount,
		OutputTokens:  out.EvalCount,
		TotalDuration: out.TotalDuration,
	}, nil
}

func (c *Client) doGenerate(ctx context.Context, payload generateRequest, out *generateResponse) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending generate request to Ollama", zap.String("model", c.model))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &domain.ErrTimeout{Operation: fmt.Sprintf("VLM generate (%s)", c.timeout)}
		}
		return &domain.ErrVLMUnavailable{Message: "Lost connection to Ollama. Is it still running?"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errMsg := fmt.Sprintf("Ollama returned status %d", resp.StatusCode)
		var errBody generateResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Error != "" {
			errMsg = errBody.Error
		}
		return errors.New(errMsg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// EncodeImage reads an image file and base64-encodes it for transmission.
func EncodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
