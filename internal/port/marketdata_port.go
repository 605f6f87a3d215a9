package port

import "github.com/marketdash/dash-assistant-go/internal/domain"

// MarketData provides the CSV-backed commodity price series.
type MarketData interface {
	ChartData() (*domain.ChartData, error)
	Latest() (*domain.MarketRow, error)
	KPI() (*domain.KPI, error)
	Stats() (map[string]domain.CommodityStats, error)
	Info() (*domain.DatasetInfo, error)

	// Context returns the latest market figures for VLM grounding, or nil
	// when no data is loadable.
	Context() *domain.MarketContext

	AppendRow(row domain.MarketRow) error
}
