// Package service provides the business logic layer (use cases):
// VLM-backed chat and analysis, snapshot management, and the market data
// scheduler.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/infra/cache"
	"github.com/marketdash/dash-assistant-go/internal/infra/observability"
	"github.com/marketdash/dash-assistant-go/internal/infra/vlm"
	"github.com/marketdash/dash-assistant-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/assistant")

// Assistant orchestrates the visual time-series reasoning pipeline: resolve
// a snapshot, ground the prompt in the latest market figures, call the VLM.
type Assistant struct {
	vlmClient port.VLMCaller
	snapshots port.SnapshotStore
	market    port.MarketData
	ctxCache  *cache.InMemory[*domain.MarketContext]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAssistant creates the assistant service with all dependencies injected.
func NewAssistant(
	vlmClient port.VLMCaller,
	snapshots port.SnapshotStore,
	market port.MarketData,
	ctxCache *cache.InMemory[*domain.MarketContext],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	return &Assistant{
		vlmClient: vlmClient,
		snapshots: snapshots,
		market:    market,
		ctxCache:  ctxCache,
		metrics:   metrics,
		logger:    logger,
	}
}

// Status probes the VLM backend and reports availability.
func (a *Assistant) Status(ctx context.Context) *domain.VLMStatus {
	ctx, span := tracer.Start(ctx, "Assistant.Status")
	defer span.End()

	available, message := a.vlmClient.Available(ctx)

	status := "offline"
	if available {
		status = "online"
	}
	a.metrics.IncrProbe(status)

	return &domain.VLMStatus{
		Status:  status,
		Message: message,
		Model:   a.vlmClient.Model(),
		Host:    a.vlmClient.Host(),
	}
}

// Chat answers a user question about a dashboard snapshot. A nil or empty
// snapshotID selects the most recent snapshot.
func (a *Assistant) Chat(ctx context.Context, question string, snapshotID *string) (*domain.ChatAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Assistant.Chat")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("chat", time.Since(start))
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &domain.ErrValidation{Field: "question", Message: "Please provide a question"}
	}

	// Resolve the snapshot and build the market context concurrently.
	var (
		snapshot *domain.Snapshot
		imageB64 string
		mctx     *domain.MarketContext
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := a.resolveSnapshot(gCtx, snapshotID)
		if err != nil {
			return err
		}
		b64, err := a.encodeSnapshotImage(snap)
		if err != nil {
			return err
		}
		snapshot, imageB64 = snap, b64
		return nil
	})

	g.Go(func() error {
		mctx = a.marketContext()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("snapshot.id", snapshot.ID))

	prompt := vlm.BuildChatPrompt(question, mctx)

	result, err := a.vlmClient.Generate(ctx, prompt, vlm.FinancialAnalystSystem, imageB64)
	if err != nil {
		a.logger.Error("VLM chat failed",
			zap.String("snapshot_id", snapshot.ID),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("vlm")
		a.metrics.IncrRequest("error")
		return nil, err
	}

	a.metrics.RecordTokens(result.PromptTokens, result.OutputTokens)
	a.metrics.IncrRequest("success")

	return &domain.ChatAnswer{
		Answer:       result.Response,
		Model:        result.Model,
		SnapshotUsed: snapshot.ID,
	}, nil
}

// Analyze runs a structured analysis (full, trends, correlation, volatility)
// on a snapshot. The result is saved as the snapshot's summary when it has
// none yet.
func (a *Assistant) Analyze(ctx context.Context, snapshotID *string, analysisType string) (*domain.AnalyzeResponse, error) {
	ctx, span := tracer.Start(ctx, "Assistant.Analyze")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("analyze", time.Since(start))
	}()

	if analysisType == "" {
		analysisType = "full"
	}
	span.SetAttributes(attribute.String("analysis.type", analysisType))

	var prompt string
	switch analysisType {
	case "trends":
		prompt = vlm.BuildTrendPrompt("all commodities")
	case "correlation":
		prompt = vlm.BuildCorrelationPrompt("gold", "oil")
	case "volatility":
		prompt = vlm.VolatilityAnalysisPrompt
	case "full":
		prompt = vlm.DetailedAnalysisPrompt
	default:
		return nil, &domain.ErrValidation{Field: "analysis_type", Message: fmt.Sprintf("unknown analysis type %q", analysisType)}
	}

	snapshot, err := a.resolveSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	imageB64, err := a.encodeSnapshotImage(snapshot)
	if err != nil {
		return nil, err
	}

	result, err := a.vlmClient.Generate(ctx, prompt, vlm.FinancialAnalystSystem, imageB64)
	if err != nil {
		a.logger.Error("VLM analysis failed",
			zap.String("snapshot_id", snapshot.ID),
			zap.String("analysis_type", analysisType),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("vlm")
		return nil, err
	}

	a.metrics.RecordTokens(result.PromptTokens, result.OutputTokens)

	// Keep the first analysis as the snapshot summary.
	if !snapshot.HasAISummary() {
		if err := a.snapshots.UpdateSummary(ctx, snapshot.ID, result.Response, ""); err != nil {
			a.logger.Warn("failed to persist analysis as summary",
				zap.String("snapshot_id", snapshot.ID),
				zap.Error(err),
			)
		}
	}

	return &domain.AnalyzeResponse{
		Success:      true,
		Analysis:     result.Response,
		SnapshotID:   snapshot.ID,
		AnalysisType: analysisType,
	}, nil
}

// VLMMetrics returns the JSON metrics snapshot for GET /v1/metrics/vlm.
func (a *Assistant) VLMMetrics(ctx context.Context) *domain.VLMMetrics {
	_, span := tracer.Start(ctx, "Assistant.VLMMetrics")
	defer span.End()

	return a.metrics.GetVLMSnapshot()
}

// marketContext returns the cached market context, refreshing it from the
// CSV when the TTL lapsed.
func (a *Assistant) marketContext() *domain.MarketContext {
	if cached, ok := a.ctxCache.Get("market"); ok {
		a.metrics.IncrCacheHit("context")
		return cached
	}
	a.metrics.IncrCacheMiss("context")

	mctx := a.market.Context()
	if mctx != nil {
		a.ctxCache.Set("market", mctx)
	}
	return mctx
}

// resolveSnapshot returns the snapshot with the given ID, or the latest one
// when id is nil or empty.
func (a *Assistant) resolveSnapshot(ctx context.Context, id *string) (*domain.Snapshot, error) {
	if id != nil && strings.TrimSpace(*id) != "" {
		return a.snapshots.GetSnapshot(ctx, strings.TrimSpace(*id))
	}
	return a.snapshots.LatestSnapshot(ctx)
}

// encodeSnapshotImage loads the snapshot image from disk. A record whose
// file is gone counts as not found.
func (a *Assistant) encodeSnapshotImage(snap *domain.Snapshot) (string, error) {
	b64, err := vlm.EncodeImage(snap.ImagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &domain.ErrNotFound{Resource: "snapshot image", ID: snap.ID}
		}
		return "", err
	}
	return b64, nil
}
