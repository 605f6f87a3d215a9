// Package marketdata loads and maintains the CSV-backed commodity price
// series (gold, silver, oil) behind the dashboard.
package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/infra/cache"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const rowsCacheKey = "rows"

var columns = []string{"date", "gold_price", "silver_price", "oil_price"}

// Handler reads and appends to the financial data CSV. Parsed rows are
// cached with a TTL; a filesystem watcher plus an mtime check invalidate the
// cache when another process rewrites the file.
type Handler struct {
	path   string
	cache  *cache.InMemory[[]domain.MarketRow]
	logger *zap.Logger

	mu       sync.Mutex
	lastMod  time.Time
	lastSize int64
}

// NewHandler creates a handler for the CSV at path. The file does not have
// to exist yet; appends create it.
func NewHandler(path string, ttl time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		path:   path,
		cache:  cache.New[[]domain.MarketRow](ttl),
		logger: logger,
	}
}

// Watch invalidates the row cache whenever the CSV file changes on disk.
// It watches the parent directory so editors that replace the file are
// caught too. Blocks until ctx is cancelled.
func (h *Handler) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				h.logger.Debug("market data file changed, invalidating cache",
					zap.String("op", event.Op.String()))
				h.cache.Delete(rowsCacheKey)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("market data watcher error", zap.Error(err))
		}
	}
}

// Load returns the parsed rows, from cache when fresh.
func (h *Handler) Load() ([]domain.MarketRow, error) {
	if rows, ok := h.cache.Get(rowsCacheKey); ok && !h.fileChanged() {
		return rows, nil
	}

	rows, err := h.readAll()
	if err != nil {
		return nil, err
	}
	h.cache.Set(rowsCacheKey, rows)
	return rows, nil
}

// fileChanged reports whether the file was modified since the last read.
// Errors count as changed so the next Load re-reads.
func (h *Handler) fileChanged() bool {
	info, err := os.Stat(h.path)
	if err != nil {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return info.ModTime().After(h.lastMod) || info.Size() != h.lastSize
}

func (h *Handler) readAll() ([]domain.MarketRow, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("opening market data: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing market data: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First record is the header.
	rows := make([]domain.MarketRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 4 {
			return nil, fmt.Errorf("row %d: expected 4 columns, got %d", i+2, len(rec))
		}
		row := domain.MarketRow{Date: strings.TrimSpace(rec[0])}
		for j, dst := range []*float64{&row.Gold, &row.Silver, &row.Oil} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, columns[j+1], err)
			}
			*dst = v
		}
		rows = append(rows, row)
	}

	h.mu.Lock()
	h.lastMod = info.ModTime()
	h.lastSize = info.Size()
	h.mu.Unlock()

	h.logger.Debug("loaded market data", zap.Int("rows", len(rows)))
	return rows, nil
}

// ChartData returns the series in the layout the dashboard charts consume.
// A missing file yields empty series, not an error.
func (h *Handler) ChartData() (*domain.ChartData, error) {
	rows, err := h.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &domain.ChartData{Dates: []string{}, Gold: []float64{}, Silver: []float64{}, Oil: []float64{}}, nil
		}
		return nil, err
	}

	data := &domain.ChartData{
		Dates:  make([]string, 0, len(rows)),
		Gold:   make([]float64, 0, len(rows)),
		Silver: make([]float64, 0, len(rows)),
		Oil:    make([]float64, 0, len(rows)),
	}
	for _, r := range rows {
		data.Dates = append(data.Dates, r.Date)
		data.Gold = append(data.Gold, r.Gold)
		data.Silver = append(data.Silver, r.Silver)
		data.Oil = append(data.Oil, r.Oil)
	}
	return data, nil
}

// Latest returns the most recent row.
func (h *Handler) Latest() (*domain.MarketRow, error) {
	rows, err := h.Load()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "market data"}
	}
	last := rows[len(rows)-1]
	return &last, nil
}

// KPI returns the latest values for the dashboard cards.
func (h *Handler) KPI() (*domain.KPI, error) {
	latest, err := h.Latest()
	if err != nil {
		return nil, err
	}
	return &domain.KPI{
		GoldLatest:   latest.Gold,
		SilverLatest: latest.Silver,
		OilLatest:    latest.Oil,
		LastDate:     latest.Date,
	}, nil
}

// Stats computes per-commodity min/max/mean over the full series.
func (h *Handler) Stats() (map[string]domain.CommodityStats, error) {
	rows, err := h.Load()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]domain.CommodityStats{}, nil
	}

	series := map[string]func(domain.MarketRow) float64{
		"gold":   func(r domain.MarketRow) float64 { return r.Gold },
		"silver": func(r domain.MarketRow) float64 { return r.Silver },
		"oil":    func(r domain.MarketRow) float64 { return r.Oil },
	}

	stats := make(map[string]domain.CommodityStats, len(series))
	for name, get := range series {
		s := domain.CommodityStats{Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, r := range rows {
			v := get(r)
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
			sum += v
		}
		s.Mean = sum / float64(len(rows))
		stats[name] = s
	}
	return stats, nil
}

// Info describes the dataset for the admin/debug endpoint.
func (h *Handler) Info() (*domain.DatasetInfo, error) {
	rows, err := h.Load()
	if err != nil {
		return nil, err
	}

	info := &domain.DatasetInfo{
		TotalRows: len(rows),
		Columns:   columns,
	}
	if len(rows) > 0 {
		info.DateRange = domain.DateRange{Start: rows[0].Date, End: rows[len(rows)-1].Date}
		n := 3
		if len(rows) < n {
			n = len(rows)
		}
		info.SampleRows = rows[len(rows)-n:]
	}
	return info, nil
}

// Context builds the textual grounding handed to the VLM alongside a
// snapshot image. Returns nil (not an error) when no data is loadable, so a
// broken CSV never blocks chat.
func (h *Handler) Context() *domain.MarketContext {
	rows, err := h.Load()
	if err != nil || len(rows) == 0 {
		if err != nil {
			h.logger.Warn("market context unavailable", zap.Error(err))
		}
		return nil
	}
	last := rows[len(rows)-1]
	return &domain.MarketContext{
		LatestDate: last.Date,
		Gold:       last.Gold,
		Silver:     last.Silver,
		Oil:        last.Oil,
		DataPoints: len(rows),
		DateRange:  domain.DateRange{Start: rows[0].Date, End: last.Date},
	}
}

// AppendRow appends one row to the CSV. It rejects duplicate dates, repairs
// a missing trailing newline, and writes a header when the file is new.
func (h *Handler) AppendRow(row domain.MarketRow) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	date := strings.TrimSpace(row.Date)
	if date == "" {
		return &domain.ErrValidation{Field: "date", Message: "must not be empty"}
	}

	existing, err := h.readAllUnlocked()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, r := range existing {
		if r.Date == date {
			return &domain.ErrDuplicate{Key: date}
		}
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := h.ensureTrailingNewline(); err != nil {
		return err
	}

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening market data for append: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(columns); err != nil {
			return err
		}
	}
	if err := w.Write([]string{date, cleanPrice(row.Gold), cleanPrice(row.Silver), cleanPrice(row.Oil)}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing market data row: %w", err)
	}

	h.cache.Delete(rowsCacheKey)
	h.logger.Info("appended market data row", zap.String("date", date))
	return nil
}

// readAllUnlocked is readAll without touching the mtime bookkeeping; callers
// hold h.mu.
func (h *Handler) readAllUnlocked() ([]domain.MarketRow, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing market data: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	rows := make([]domain.MarketRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 1 {
			continue
		}
		rows = append(rows, domain.MarketRow{Date: strings.TrimSpace(rec[0])})
	}
	return rows, nil
}

func (h *Handler) ensureTrailingNewline() error {
	f, err := os.OpenFile(h.path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil {
		return err
	}
	if buf[0] != '\n' {
		if _, err := f.WriteAt([]byte{'\n'}, info.Size()); err != nil {
			return err
		}
	}
	return nil
}

// cleanPrice formats a price without a trailing ".0": whole numbers print as
// integers, large values keep one decimal, small values keep two.
func cleanPrice(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	if v >= 100 {
		return strconv.FormatFloat(round(v, 1), 'f', -1, 64)
	}
	return strconv.FormatFloat(round(v, 2), 'f', -1, 64)
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// NextSynthetic generates the next day's prices from the previous row with
// small normal daily moves, clamped to plausible 2026 ranges.
func NextSynthetic(prev domain.MarketRow, at time.Time) domain.MarketRow {
	return domain.MarketRow{
		Date:   at.Format("2006-01-02 15:04:05"),
		Gold:   round(clamp(prev.Gold+rand.NormFloat64()*28, 2300, 3400), 1),
		Silver: round(clamp(prev.Silver+rand.NormFloat64()*1.4, 25, 50), 2),
		Oil:    round(clamp(prev.Oil+rand.NormFloat64()*4.0, 50, 130), 2),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
