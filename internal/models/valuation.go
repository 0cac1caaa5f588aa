package models

// HoldingValuation holds the figures computed for one holding.
// Monetary values are in home currency units.
type HoldingValuation struct {
	Holding           Holding `json:"holding"`
	CurrentPrice      int64   `json:"current_price"`
	Rate              string  `json:"rate"`
	TodayPL           int64   `json:"today_pl"`
	CumulativePL      int64   `json:"cumulative_pl"`
	CumulativePercent float64 `json:"cumulative_percent"`
	CumulativeRate    string  `json:"cumulative_rate"`
	MarketValue       int64   `json:"market_value"`
	Rising            bool    `json:"rising"`
	DetailURL         string  `json:"detail_url"`
}

// Valuation is the result of one refresh pass.
type Valuation struct {
	Holdings   []HoldingValuation `json:"holdings"`
	TotalPL    int64              `json:"total_pl"`
	TotalValue int64              `json:"total_value"`
	Timestamp  string             `json:"timestamp"`
	Snapshot   MarketSnapshot     `json:"snapshot"`
}
