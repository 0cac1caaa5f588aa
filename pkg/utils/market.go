package utils

import (
	"time"
)

// Display and query layouts.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateStampLayout = "20060102"
)

// KoreaLocation is the timezone of the domestic market.
var KoreaLocation *time.Location

func init() {
	var err error
	KoreaLocation, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback to UTC+9
		KoreaLocation = time.FixedZone("KST", 9*60*60)
	}
}

// LoadLocation resolves a timezone name, falling back to KoreaLocation.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return KoreaLocation
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return KoreaLocation
	}
	return loc
}

// DateStamp returns the YYYYMMDD date of t in loc.
func DateStamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateStampLayout)
}

// Timestamp returns the display timestamp of t in loc.
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// IsDomesticSession reports whether t falls in regular KRX hours (09:00-15:30 KST, weekdays).
func IsDomesticSession(t time.Time) bool {
	now := t.In(KoreaLocation)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 540 && minutes < 930
}
