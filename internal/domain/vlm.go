package domain

// ============================================================
// VLM (Ollama/LLaVA) — request/response contracts
// ============================================================

// VLMStatus is returned by GET /v1/vlm/status.
type VLMStatus struct {
	Status  string `json:"status"` // online, offline, error
	Message string `json:"message"`
	Model   string `json:"model"`
	Host    string `json:"host"`
}

// VLMResult is the service-level outcome of one generate call.
type VLMResult struct {
	Response      string
	Model         string
	PromptTokens  int
	OutputTokens  int
	TotalDuration int64
}

// ChatRequest is the body of POST /v1/vlm/chat. SnapshotID is nullable:
// null means "use the latest snapshot".
type ChatRequest struct {
	Question   string  `json:"question"`
	SnapshotID *string `json:"snapshot_id"`
}

// ChatResponse is the success payload of POST /v1/vlm/chat.
type ChatResponse struct {
	Success      bool   `json:"success"`
	Answer       string `json:"answer"`
	SnapshotUsed string `json:"snapshot_used"`
	Model        string `json:"model,omitempty"`
}

// ChatFailure is the structured failure payload shared by the VLM endpoints.
type ChatFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// AnalyzeRequest is the body of POST /v1/vlm/analyze.
type AnalyzeRequest struct {
	SnapshotID   *string `json:"snapshot_id"`
	AnalysisType string  `json:"analysis_type,omitempty"` // full, trends, correlation, volatility
}

// AnalyzeResponse is the success payload of POST /v1/vlm/analyze.
type AnalyzeResponse struct {
	Success      bool   `json:"success"`
	Analysis     string `json:"analysis"`
	SnapshotID   string `json:"snapshot_id"`
	AnalysisType string `json:"analysis_type"`
}

// RegenerateSummaryResponse is returned by POST /v1/snapshots/{id}/summary.
type RegenerateSummaryResponse struct {
	Success    bool   `json:"success"`
	AISummary  string `json:"ai_summary"`
	AIAnalyzed bool   `json:"ai_analyzed"`
	Error      string `json:"error,omitempty"`
}

// ChatAnswer is the service-level result of one chat exchange before it is
// mapped to the API payload.
type ChatAnswer struct {
	Answer       string
	Model        string
	SnapshotUsed string
}
