package domain

// ============================================================
// Market data (CSV-backed commodity series)
// ============================================================

// MarketRow is one day of commodity prices.
type MarketRow struct {
	Date   string  `json:"date"`
	Gold   float64 `json:"gold_price"`
	Silver float64 `json:"silver_price"`
	Oil    float64 `json:"oil_price"`
}

// ChartData is the series layout consumed by the dashboard charts.
type ChartData struct {
	Dates  []string  `json:"dates"`
	Gold   []float64 `json:"gold"`
	Silver []float64 `json:"silver"`
	Oil    []float64 `json:"oil"`
}

// KPI holds the latest values shown on the dashboard cards.
type KPI struct {
	GoldLatest   float64 `json:"gold_latest"`
	SilverLatest float64 `json:"silver_latest"`
	OilLatest    float64 `json:"oil_latest"`
	LastDate     string  `json:"last_date"`
}

// CommodityStats summarizes one commodity series.
type CommodityStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// DatasetInfo describes the loaded CSV dataset.
type DatasetInfo struct {
	TotalRows  int         `json:"total_rows"`
	Columns    []string    `json:"columns"`
	SampleRows []MarketRow `json:"sample_rows"`
	DateRange  DateRange   `json:"date_range"`
}

// DateRange is the first and last date covered by the dataset.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarketContext is the textual grounding handed to the VLM alongside the
// snapshot image: latest prices plus dataset extent.
type MarketContext struct {
	LatestDate string
	Gold       float64
	Silver     float64
	Oil        float64
	DataPoints int
	DateRange  DateRange
}
