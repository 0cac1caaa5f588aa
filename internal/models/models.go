// Package models provides domain models for the portfolio board.
package models

import (
	"time"
)

// Market identifies the pricing regime of a holding.
// KOR is the domestic regime; any other value is a foreign exchange code
// passed verbatim to the overseas price lookup.
type Market string

const (
	MarketKOR Market = "KOR"
	MarketNAS Market = "NAS" // Nasdaq
	MarketNYS Market = "NYS" // New York
	MarketAMS Market = "AMS" // Amex
)

// IsDomestic reports whether the market is priced in home currency.
func (m Market) IsDomestic() bool {
	return m == MarketKOR
}

// Holding is one line item of the watched portfolio.
type Holding struct {
	Market  Market  `json:"market"`
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Balance int64   `json:"balance"`
	Price   float64 `json:"price"` // average acquisition price, native currency
}

// Portfolio is the unit of persistence and replacement.
type Portfolio struct {
	Items []Holding `json:"items"`
}

// Len returns the number of holdings.
func (p Portfolio) Len() int {
	return len(p.Items)
}

// HasForeign reports whether any holding needs FX conversion.
func (p Portfolio) HasForeign() bool {
	for _, h := range p.Items {
		if !h.Market.IsDomestic() {
			return true
		}
	}
	return false
}

// Quote is the normalized result of a current-price lookup.
type Quote struct {
	Current   float64
	Reference float64 // start-of-day (domestic) or base (foreign) price
	Rate      string  // signed daily change rate
}

// Credential is a bearer token with its absolute expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can still be used at now.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt)
}

// Conclusion is one intraday execution record of a domestic security.
type Conclusion struct {
	Time   string  `json:"time"` // HHMMSS
	Price  float64 `json:"price"`
	Sign   string  `json:"sign"`
	Change float64 `json:"change"`
	Volume int64   `json:"volume"`
}
