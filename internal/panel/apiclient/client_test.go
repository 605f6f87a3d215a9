package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/marketdash/dash-assistant-go/internal/panel"
	"github.com/marketdash/dash-assistant-go/internal/panel/apiclient"
)

type fakeAPI struct {
	mux        *http.ServeMux
	csrfIssued int
	chatBodies []map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{mux: http.NewServeMux()}

	api.mux.HandleFunc("GET /v1/csrf", func(w http.ResponseWriter, r *http.Request) {
		api.csrfIssued++
		json.NewEncoder(w).Encode(map[string]string{"csrf_token": "test-token"})
	})

	srv := httptest.NewServer(api.mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func newClient(url string) *apiclient.Client {
	return apiclient.New(url, 5*time.Second, zap.NewNop())
}

func TestStatusOnline(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("GET /v1/vlm/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "online",
			"message": "Ollama is running and model is available",
			"model":   "llava:latest",
			"host":    "http://localhost:11434",
		})
	})

	status, err := newClient(srv.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Online || status.Model != "llava:latest" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStatusOffline(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("GET /v1/vlm/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "offline",
			"message": "Cannot connect to Ollama. Is it running? Start with: ollama serve",
		})
	})

	status, err := newClient(srv.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Online {
		t.Fatal("expected offline")
	}
	if !strings.Contains(status.Message, "Cannot connect to Ollama") {
		t.Fatalf("unexpected message: %q", status.Message)
	}
}

func TestStatusTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newClient(srv.URL).Status(context.Background())
	if err == nil {
		t.Fatal("expected a transport error against a closed server")
	}
	var domainErr *panel.DomainError
	if errors.As(err, &domainErr) {
		t.Fatal("transport failures must not be domain errors")
	}
}

func TestAskSendsCSRFTokenAndSnapshotID(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/vlm/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "CSRF token required"})
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		api.chatBodies = append(api.chatBodies, body)
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"answer":        "Gold is trending upward.",
			"snapshot_used": "snap-1",
			"model":         "llava:latest",
		})
	})

	ans, err := newClient(srv.URL).Ask(context.Background(), "Is gold going up?", "snap-1")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "Gold is trending upward." || ans.SnapshotUsed != "snap-1" {
		t.Fatalf("unexpected answer: %+v", ans)
	}

	if len(api.chatBodies) != 1 {
		t.Fatalf("expected one chat call, got %d", len(api.chatBodies))
	}
	if got := api.chatBodies[0]["snapshot_id"]; got != "snap-1" {
		t.Fatalf("snapshot_id = %v, want snap-1", got)
	}
}

func TestAskWithoutSnapshotSendsNull(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/vlm/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		api.chatBodies = append(api.chatBodies, body)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "answer": "ok"})
	})

	if _, err := newClient(srv.URL).Ask(context.Background(), "question", ""); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if got, present := api.chatBodies[0]["snapshot_id"]; !present || got != nil {
		t.Fatalf("snapshot_id should be null, got %v (present %v)", got, present)
	}
}

func TestAskAPIFailureIsDomainError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/vlm/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Lost connection to Ollama. Is it still running?",
		})
	})

	_, err := newClient(srv.URL).Ask(context.Background(), "question", "")
	var domainErr *panel.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if !strings.Contains(domainErr.Message, "Lost connection to Ollama") {
		t.Fatalf("unexpected message: %q", domainErr.Message)
	}
}

func TestAskEmptyAnswerIsDomainError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/vlm/chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"answer":        "   ",
			"snapshot_used": "snap-1",
		})
	})

	_, err := newClient(srv.URL).Ask(context.Background(), "question", "")
	var domainErr *panel.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError for a blank answer, got %v", err)
	}
	if !strings.Contains(domainErr.Message, "empty answer") {
		t.Fatalf("unexpected message: %q", domainErr.Message)
	}
}

func TestAskRefreshesRejectedCSRFToken(t *testing.T) {
	api, srv := newFakeAPI(t)
	rejected := false
	api.mux.HandleFunc("POST /v1/vlm/chat", func(w http.ResponseWriter, r *http.Request) {
		if !rejected {
			rejected = true
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid CSRF token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "answer": "ok"})
	})

	client := newClient(srv.URL)
	if _, err := client.Ask(context.Background(), "question", ""); err != nil {
		t.Fatalf("Ask after token refresh: %v", err)
	}
	if api.csrfIssued != 2 {
		t.Fatalf("expected a token refresh, issued %d tokens", api.csrfIssued)
	}
}

func TestSaveSnapshot(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/snapshots", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["image"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "image is required"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "success",
			"snapshot_id": "snap-new",
			"message":     "Snapshot saved successfully",
		})
	})

	id, err := newClient(srv.URL).SaveSnapshot(context.Background(), "data:image/png;base64,aGVsbG8=", "")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if id != "snap-new" {
		t.Fatalf("snapshot id = %q, want snap-new", id)
	}
}

func TestSaveSnapshotFailure(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/snapshots", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "image is required"})
	})

	_, err := newClient(srv.URL).SaveSnapshot(context.Background(), "", "")
	var domainErr *panel.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if !strings.Contains(domainErr.Message, "image is required") {
		t.Fatalf("unexpected message: %q", domainErr.Message)
	}
}
