// Package utils provides shared utility functions.
package utils

import (
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// thousands groups whole won amounts: 1234567 -> "1,234,567".
var thousands = money.NewFormatter(0, ".", ",", "", "1")

// FormatAmount formats an integer amount with thousands separators.
func FormatAmount(amount int64) string {
	return thousands.Format(amount)
}

// FormatFloat formats a float in its shortest form, always keeping one
// fractional digit: 5 -> "5.0", -12.34 -> "-12.34".
func FormatFloat(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// FloorPercent returns ((current-base)/base)*100 floored to two decimals.
// A zero base yields zero.
func FloorPercent(current, base float64) float64 {
	if base == 0 {
		return 0
	}
	cur := decimal.NewFromFloat(current)
	ref := decimal.NewFromFloat(base)
	pct := cur.Sub(ref).Div(ref).Mul(decimal.NewFromInt(100)).RoundFloor(2)
	return pct.InexactFloat64()
}

// SignedPercent formats a percentage, prefixing "+" only when positive.
func SignedPercent(value float64) string {
	if value > 0 {
		return "+" + FormatFloat(value)
	}
	// -0 prints as "-0.0" otherwise
	if value == 0 {
		return "0.0"
	}
	return FormatFloat(value)
}

// FloorRate is SignedPercent(FloorPercent(current, base)).
func FloorRate(current, base float64) string {
	return SignedPercent(FloorPercent(current, base))
}

// MarketSign prefixes an upstream rate with "+" unless it already carries "-".
func MarketSign(rate string) string {
	rate = strings.TrimSpace(rate)
	if strings.Contains(rate, "-") || strings.HasPrefix(rate, "+") {
		return rate
	}
	return "+" + rate
}

// Truncate converts to int64 discarding the fractional part.
func Truncate(value float64) int64 {
	return int64(value)
}
