package valuation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"kis-board/internal/models"
	"kis-board/pkg/utils"
)

// Detail page bases keyed by regime.
const (
	domesticDetailURL = "https://m.stock.naver.com/domestic/stock/%s/discuss"
	foreignDetailURL  = "https://m.stock.naver.com/worldstock/stock/%s/discuss"
)

// ValuateHolding computes the figures of one holding from its quote and FX
// multiplier. Monetary results are truncated toward zero.
func ValuateHolding(h models.Holding, q models.Quote, fx int64) models.HoldingValuation {
	rate := float64(fx)
	balance := float64(h.Balance)

	cumulative := utils.Truncate((q.Current*rate)*balance - (h.Price*rate)*balance)
	today := utils.Truncate(((q.Current - q.Reference) * rate) * balance)
	current := utils.Truncate(q.Current * rate)
	percent := utils.FloorPercent(q.Current, h.Price)

	return models.HoldingValuation{
		Holding:           h,
		CurrentPrice:      current,
		Rate:              strings.TrimSpace(q.Rate),
		TodayPL:           today,
		CumulativePL:      cumulative,
		CumulativePercent: percent,
		CumulativeRate:    utils.SignedPercent(percent),
		MarketValue:       current * h.Balance,
		Rising:            isRising(h.Market, q.Rate),
		DetailURL:         DetailURL(h.Market, h.Code),
	}
}

// isRising reports today's direction from the daily rate string. Domestic
// rates carry an explicit "+"; foreign ones are signed only when negative.
func isRising(market models.Market, rate string) bool {
	rate = strings.TrimSpace(rate)
	if market.IsDomestic() {
		return strings.Contains(rate, "+")
	}
	if rate == "" || strings.HasPrefix(rate, "-") {
		return false
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(rate, "+"), 64)
	return err == nil && v > 0
}

// DetailURL returns the discussion page of a security.
func DetailURL(market models.Market, code string) string {
	if market.IsDomestic() {
		return fmt.Sprintf(domesticDetailURL, url.PathEscape(code))
	}
	return fmt.Sprintf(foreignDetailURL, url.PathEscape(code))
}
