package vlm_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/infra/resilience"
	"github.com/marketdash/dash-assistant-go/internal/infra/vlm"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, host string) *vlm.Client {
	t.Helper()
	cfg := resilience.Config{
		MaxRetries:     0,
		InitialBackoff: 10 * time.Millisecond,
		MaxConcurrency: 1,
	}
	cb := resilience.NewCircuitBreaker("vlm-test")
	return vlm.NewClient(host, "llava", 2*time.Second, cb, cfg, zap.NewNop())
}

func TestAvailable_ModelPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llava:latest"},{"name":"mistral:7b"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ok, msg := client.Available(context.Background())
	if !ok {
		t.Fatalf("expected available, got: %s", msg)
	}
}

func TestAvailable_ModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"mistral:7b"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ok, msg := client.Available(context.Background())
	if ok {
		t.Fatal("expected unavailable when model is missing")
	}
	if !strings.Contains(msg, "Model 'llava' not found") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestAvailable_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)

	ok, msg := client.Available(context.Background())
	if ok {
		t.Fatal("expected unavailable when server is down")
	}
	if !strings.Contains(msg, "Cannot connect to Ollama") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"response":"Gold is trending upward.","eval_count":42,"prompt_eval_count":120,"total_duration":900000}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Generate(context.Background(), "Is gold rising?", vlm.FinancialAnalystSystem, "aW1hZ2U=")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Response != "Gold is trending upward." {
		t.Errorf("unexpected response: %s", result.Response)
	}
	if result.Model != "llava" {
		t.Errorf("expected model llava, got %s", result.Model)
	}
	if result.OutputTokens != 42 || result.PromptTokens != 120 {
		t.Errorf("unexpected token counts: %d/%d", result.PromptTokens, result.OutputTokens)
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"   "}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Generate(context.Background(), "question", "", "aW1hZ2U=")
	if err == nil {
		t.Fatal("expected error for empty model response")
	}
}

func TestGenerate_ConnectionLost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Generate(context.Background(), "question", "", "aW1hZ2U=")
	if err == nil {
		t.Fatal("expected error when server is gone")
	}

	var unavailable *domain.ErrVLMUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrVLMUnavailable, got %T: %v", err, err)
	}
	if !strings.Contains(unavailable.Message, "Lost connection to Ollama") {
		t.Errorf("unexpected message: %s", unavailable.Message)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model runner has unexpectedly stopped"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Generate(context.Background(), "question", "", "aW1hZ2U=")
	if err == nil {
		t.Fatal("expected error on HTTP 500")
	}
	if !strings.Contains(err.Error(), "model runner has unexpectedly stopped") {
		t.Errorf("expected upstream error message, got: %v", err)
	}
}

func TestBuildChatPrompt_WithContext(t *testing.T) {
	mctx := &domain.MarketContext{
		LatestDate: "2026-08-20",
		Gold:       2712.40,
		Silver:     31.15,
		Oil:        78.90,
	}

	prompt := vlm.BuildChatPrompt("Is gold rising?", mctx)

	for _, want := range []string{
		"Dashboard Context:",
		"Data as of: 2026-08-20",
		"Gold: $2712.40",
		"User Question: Is gold rising?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildChatPrompt_NoContext(t *testing.T) {
	prompt := vlm.BuildChatPrompt("Is gold rising?", nil)

	if strings.Contains(prompt, "Dashboard Context") {
		t.Error("prompt should not include context block when context is nil")
	}
	if !strings.Contains(prompt, "User Question: Is gold rising?") {
		t.Error("prompt missing user question")
	}
}
