package service

import "time"

// Expiry status buckets, ordered by urgency.
const (
	ExpiryStatusExpired       = "expired"
	ExpiryStatusExpiringSoon  = "expiring_soon"
	ExpiryStatusExpiringLater = "expiring_later"
	ExpiryStatusGood          = "good"
)

// Default classification windows, overridable per tenant in settings.
const (
	DefaultExpirySoonDays  = 30
	DefaultExpiryLaterDays = 90
)

// ExpiryWindows holds the day thresholds separating the expiry buckets.
// Soon must be positive and not exceed Later.
type ExpiryWindows struct {
	SoonDays  int
	LaterDays int
}

// DefaultExpiryWindows returns the standard 30/90 day windows
func DefaultExpiryWindows() ExpiryWindows {
	return ExpiryWindows{SoonDays: DefaultExpirySoonDays, LaterDays: DefaultExpiryLaterDays}
}

// DaysUntilExpiry returns the whole number of calendar days from today until
// the expiry date. Negative when the date is in the past. Both dates are
// truncated to midnight so the result is hour-independent.
func DaysUntilExpiry(today, expiryDate time.Time) int {
	t := truncateToDay(today)
	e := truncateToDay(expiryDate)
	return int(e.Sub(t).Hours() / 24)
}

// ClassifyExpiry buckets an expiry date relative to today. A batch expiring
// today is still expiring_soon, not expired; only dates strictly in the past
// are expired.
func ClassifyExpiry(today, expiryDate time.Time, windows ExpiryWindows) (string, int) {
	days := DaysUntilExpiry(today, expiryDate)

	switch {
	case days < 0:
		return ExpiryStatusExpired, days
	case days <= windows.SoonDays:
		return ExpiryStatusExpiringSoon, days
	case days <= windows.LaterDays:
		return ExpiryStatusExpiringLater, days
	default:
		return ExpiryStatusGood, days
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
