package domain

import (
	"strings"
	"time"
)

// ============================================================
// Dashboard snapshots
// ============================================================

// Snapshot is a captured dashboard image plus its AI-generated summary state.
// The panel references snapshots by their opaque ID when asking questions.
type Snapshot struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImagePath string    `json:"-"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`

	AISummary       string `json:"ai_summary,omitempty"`
	AIAnalyzed      bool   `json:"ai_analyzed"`
	AIAnalysisError string `json:"ai_analysis_error,omitempty"`
}

// HasAISummary reports whether a non-blank summary was generated.
func (s *Snapshot) HasAISummary() bool {
	return strings.TrimSpace(s.AISummary) != ""
}

// SaveSnapshotRequest is the body of POST /v1/snapshots. Image is either a
// data URL ("data:image/png;base64,....") or a bare base64 payload.
type SaveSnapshotRequest struct {
	Image string `json:"image"`
	Title string `json:"title,omitempty"`
}

// SaveSnapshotResponse mirrors the contract the dashboard frontend expects.
type SaveSnapshotResponse struct {
	Status     string `json:"status"`
	SnapshotID string `json:"snapshot_id"`
	ImageURL   string `json:"image_url"`
	CreatedAt  string `json:"created_at"`
	Message    string `json:"message"`
}
