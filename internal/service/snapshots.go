package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/infra/vlm"
	"github.com/marketdash/dash-assistant-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var snapTracer = otel.Tracer("service/snapshots")

// summaryTimeout bounds the detached summary-generation goroutine; the save
// response never waits on it.
const summaryTimeout = 3 * time.Minute

// Snapshots handles saving dashboard captures and generating their AI
// summaries.
type Snapshots struct {
	store     port.SnapshotStore
	vlmClient port.VLMCaller
	mediaDir  string
	logger    *zap.Logger
}

// NewSnapshots creates the snapshot service. Images are written under
// mediaDir.
func NewSnapshots(store port.SnapshotStore, vlmClient port.VLMCaller, mediaDir string, logger *zap.Logger) *Snapshots {
	return &Snapshots{
		store:     store,
		vlmClient: vlmClient,
		mediaDir:  mediaDir,
		logger:    logger,
	}
}

// Save decodes the base64 image, persists it, and kicks off summary
// generation in the background.
func (s *Snapshots) Save(ctx context.Context, req *domain.SaveSnapshotRequest) (*domain.SaveSnapshotResponse, error) {
	ctx, span := snapTracer.Start(ctx, "Snapshots.Save")
	defer span.End()

	if strings.TrimSpace(req.Image) == "" {
		return nil, &domain.ErrValidation{Field: "image", Message: "No image provided"}
	}

	raw, ext, err := decodeImagePayload(req.Image)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "image", Message: err.Error()}
	}

	id := uuid.NewString()
	createdAt := time.Now()

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Dashboard Snapshot - %d", createdAt.UnixMilli())
	}

	if err := os.MkdirAll(s.mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}

	filename := fmt.Sprintf("snapshot_%s.%s", id, ext)
	imagePath := filepath.Join(s.mediaDir, filename)
	if err := os.WriteFile(imagePath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("writing snapshot image: %w", err)
	}

	snap := &domain.Snapshot{
		ID:        id,
		Title:     title,
		ImagePath: imagePath,
		ImageURL:  "/media/snapshots/" + filename,
		CreatedAt: createdAt,
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		os.Remove(imagePath)
		return nil, err
	}

	s.logger.Info("snapshot saved",
		zap.String("snapshot_id", id),
		zap.Int("bytes", len(raw)),
	)

	// Generate the AI summary without blocking the save response.
	go s.generateSummary(id, imagePath)

	return &domain.SaveSnapshotResponse{
		Status:     "success",
		SnapshotID: id,
		ImageURL:   snap.ImageURL,
		CreatedAt:  createdAt.Format(time.RFC3339),
		Message:    "Snapshot saved successfully",
	}, nil
}

// Get returns one snapshot by ID.
func (s *Snapshots) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	ctx, span := snapTracer.Start(ctx, "Snapshots.Get")
	defer span.End()

	return s.store.GetSnapshot(ctx, id)
}

// List returns up to limit snapshots, newest first.
func (s *Snapshots) List(ctx context.Context, limit int) ([]*domain.Snapshot, error) {
	ctx, span := snapTracer.Start(ctx, "Snapshots.List")
	defer span.End()

	return s.store.ListSnapshots(ctx, limit)
}

// RegenerateSummary re-runs summary generation synchronously and returns the
// outcome.
func (s *Snapshots) RegenerateSummary(ctx context.Context, id string) (*domain.RegenerateSummaryResponse, error) {
	ctx, span := snapTracer.Start(ctx, "Snapshots.RegenerateSummary")
	defer span.End()

	snap, err := s.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	imageB64, err := vlm.EncodeImage(snap.ImagePath)
	if err != nil {
		return nil, &domain.ErrNotFound{Resource: "snapshot image", ID: id}
	}

	result, genErr := s.vlmClient.Generate(ctx, vlm.SnapshotSummaryPrompt, vlm.FinancialAnalystSystem, imageB64)
	if genErr != nil {
		if err := s.store.UpdateSummary(ctx, id, "", genErr.Error()); err != nil {
			s.logger.Warn("failed to record summary error", zap.String("snapshot_id", id), zap.Error(err))
		}
		return &domain.RegenerateSummaryResponse{
			Success: false,
			Error:   genErr.Error(),
		}, nil
	}

	if err := s.store.UpdateSummary(ctx, id, result.Response, ""); err != nil {
		return nil, err
	}

	return &domain.RegenerateSummaryResponse{
		Success:    true,
		AISummary:  result.Response,
		AIAnalyzed: true,
	}, nil
}

// generateSummary runs in its own goroutine with a detached context; the
// HTTP request that saved the snapshot is long gone by the time the model
// answers.
func (s *Snapshots) generateSummary(id, imagePath string) {
	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	imageB64, err := vlm.EncodeImage(imagePath)
	if err != nil {
		s.recordSummaryFailure(ctx, id, err)
		return
	}

	result, err := s.vlmClient.Generate(ctx, vlm.SnapshotSummaryPrompt, vlm.FinancialAnalystSystem, imageB64)
	if err != nil {
		s.recordSummaryFailure(ctx, id, err)
		return
	}

	if err := s.store.UpdateSummary(ctx, id, result.Response, ""); err != nil {
		s.logger.Error("failed to store snapshot summary", zap.String("snapshot_id", id), zap.Error(err))
		return
	}
	s.logger.Info("snapshot summary generated", zap.String("snapshot_id", id))
}

func (s *Snapshots) recordSummaryFailure(ctx context.Context, id string, cause error) {
	s.logger.Warn("AI summary generation failed",
		zap.String("snapshot_id", id),
		zap.Error(cause),
	)
	if err := s.store.UpdateSummary(ctx, id, "", cause.Error()); err != nil {
		s.logger.Error("failed to record summary error", zap.String("snapshot_id", id), zap.Error(err))
	}
}

// decodeImagePayload accepts either a data URL ("data:image/png;base64,...")
// or a bare base64 string. Returns the raw bytes and the file extension.
func decodeImagePayload(payload string) ([]byte, string, error) {
	ext := "png"
	b64 := payload

	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		header := payload[:idx]
		b64 = payload[idx+len(";base64,"):]
		if slash := strings.LastIndex(header, "/"); slash >= 0 {
			ext = header[slash+1:]
		}
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image data: %w", err)
	}
	return raw, ext, nil
}
