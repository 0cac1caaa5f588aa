package models

// Snapshot labels.
const (
	LabelKOSPI  = "KOSPI"
	LabelDJI    = "DJI"
	LabelUSDKRW = "USDKRW"
)

// SnapshotOrder is the display order of the market card.
var SnapshotOrder = []string{LabelKOSPI, LabelDJI, LabelUSDKRW}

// IndexQuote is an end-of-day index or FX reading.
type IndexQuote struct {
	Label         string  `json:"label"`
	Current       float64 `json:"current"`
	PreviousClose float64 `json:"previous_close"`
	Rate          string  `json:"rate"` // as provided by upstream
}

// MarketSnapshot maps index/FX labels to their latest reading.
type MarketSnapshot map[string]IndexQuote

// Lookup returns the reading for label.
func (s MarketSnapshot) Lookup(label string) (IndexQuote, bool) {
	q, ok := s[label]
	return q, ok
}

// Merge copies every entry of other into s. Labels in other win.
func (s MarketSnapshot) Merge(other MarketSnapshot) {
	for label, q := range other {
		s[label] = q
	}
}
