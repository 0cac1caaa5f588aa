// Package broker provides the quote API integration: credential lifecycle
// and read-only market data lookups.
package broker

import (
	"context"

	"kis-board/internal/models"
)

// TokenSource issues bearer tokens for upstream calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// MarketData defines the quote lookups the valuation engine depends on.
type MarketData interface {
	// CurrentPrice returns the current and reference price of one security.
	// The market selects the domestic or the overseas lookup.
	CurrentPrice(ctx context.Context, market models.Market, code string) (models.Quote, error)

	// Snapshot returns the end-of-day index and FX readings.
	Snapshot(ctx context.Context) (models.MarketSnapshot, error)
}

// Transaction ids, one per report type.
const (
	TrDomesticPrice   = "FHKST01010100"
	TrForeignPrice    = "HHDFS00000300"
	TrDomesticIndex   = "FHKUP03500100"
	TrForeignIndex    = "FHKST03030100"
	TrTimeConclusions = "FHPST01060000"
)

// API paths, relative to the base URL.
const (
	pathToken           = "oauth2/tokenP"
	pathDomesticPrice   = "uapi/domestic-stock/v1/quotations/inquire-price"
	pathForeignPrice    = "uapi/overseas-price/v1/quotations/price"
	pathDomesticIndex   = "uapi/domestic-stock/v1/quotations/inquire-daily-indexchartprice"
	pathForeignIndex    = "uapi/overseas-price/v1/quotations/inquire-daily-chartprice"
	pathTimeConclusions = "uapi/domestic-stock/v1/quotations/inquire-time-itemconclusion"
)

// indexSource describes one fixed snapshot entry.
type indexSource struct {
	Label  string
	Market string // FID_COND_MRKT_DIV_CODE
	Code   string // FID_INPUT_ISCD
}

var (
	domesticIndexes = []indexSource{
		{Label: models.LabelKOSPI, Market: "U", Code: "0001"},
	}
	foreignIndexes = []indexSource{
		{Label: models.LabelDJI, Market: "N", Code: ".DJI"},
		{Label: models.LabelUSDKRW, Market: "X", Code: "FX@KRW"},
	}
)
