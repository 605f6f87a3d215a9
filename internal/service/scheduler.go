package service

import (
	"context"
	"errors"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/marketdata"
	"github.com/marketdash/dash-assistant-go/internal/port"

	"go.uber.org/zap"
)

// Scheduler appends one synthetic market data row per interval so the
// dashboard keeps moving without a live feed. Demo feature; disable with
// SCHEDULER_ENABLED=false.
type Scheduler struct {
	market   port.MarketData
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates the market data scheduler.
func NewScheduler(market port.MarketData, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{market: market, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("market data scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market data scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	latest, err := s.market.Latest()
	if err != nil {
		s.logger.Warn("scheduler: no market data to extend", zap.Error(err))
		return
	}

	row := marketdata.NextSynthetic(*latest, time.Now())
	if err := s.market.AppendRow(row); err != nil {
		var dup *domain.ErrDuplicate
		if errors.As(err, &dup) {
			s.logger.Debug("scheduler: row already exists", zap.String("date", row.Date))
			return
		}
		s.logger.Error("scheduler: failed to append row", zap.Error(err))
		return
	}

	s.logger.Info("scheduler: appended synthetic row",
		zap.String("date", row.Date),
		zap.Float64("gold", row.Gold),
		zap.Float64("silver", row.Silver),
		zap.Float64("oil", row.Oil),
	)
}
