package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExpiry(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	windows := DefaultExpiryWindows()

	tests := []struct {
		name       string
		expiryDate time.Time
		wantStatus string
		wantDays   int
	}{
		{
			name:       "yesterday is expired",
			expiryDate: today.AddDate(0, 0, -1),
			wantStatus: ExpiryStatusExpired,
			wantDays:   -1,
		},
		{
			name:       "long past is expired",
			expiryDate: today.AddDate(-1, 0, 0),
			wantStatus: ExpiryStatusExpired,
			wantDays:   -365,
		},
		{
			name:       "today is expiring soon, not expired",
			expiryDate: today,
			wantStatus: ExpiryStatusExpiringSoon,
			wantDays:   0,
		},
		{
			name:       "day 30 is the soon boundary",
			expiryDate: today.AddDate(0, 0, 30),
			wantStatus: ExpiryStatusExpiringSoon,
			wantDays:   30,
		},
		{
			name:       "day 31 falls into expiring later",
			expiryDate: today.AddDate(0, 0, 31),
			wantStatus: ExpiryStatusExpiringLater,
			wantDays:   31,
		},
		{
			name:       "day 90 is the later boundary",
			expiryDate: today.AddDate(0, 0, 90),
			wantStatus: ExpiryStatusExpiringLater,
			wantDays:   90,
		},
		{
			name:       "day 91 is good",
			expiryDate: today.AddDate(0, 0, 91),
			wantStatus: ExpiryStatusGood,
			wantDays:   91,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, days := ClassifyExpiry(today, tt.expiryDate, windows)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDays, days)
		})
	}
}

func TestClassifyExpiryIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2025, 6, 15, 23, 50, 0, 0, time.UTC)
	expiry := time.Date(2025, 6, 16, 0, 10, 0, 0, time.UTC)

	status, days := ClassifyExpiry(today, expiry, DefaultExpiryWindows())
	assert.Equal(t, ExpiryStatusExpiringSoon, status)
	assert.Equal(t, 1, days)
}

func TestClassifyExpiryCustomWindows(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	windows := ExpiryWindows{SoonDays: 7, LaterDays: 14}

	status, _ := ClassifyExpiry(today, today.AddDate(0, 0, 7), windows)
	assert.Equal(t, ExpiryStatusExpiringSoon, status)

	status, _ = ClassifyExpiry(today, today.AddDate(0, 0, 8), windows)
	assert.Equal(t, ExpiryStatusExpiringLater, status)

	status, _ = ClassifyExpiry(today, today.AddDate(0, 0, 15), windows)
	assert.Equal(t, ExpiryStatusGood, status)
}

func TestClassifyExpiryNoGapsOrOverlaps(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	windows := DefaultExpiryWindows()

	// Every day in a wide range maps to exactly one bucket, and buckets
	// never regress as the date moves forward.
	order := map[string]int{
		ExpiryStatusExpired:       0,
		ExpiryStatusExpiringSoon:  1,
		ExpiryStatusExpiringLater: 2,
		ExpiryStatusGood:          3,
	}

	prev := -1
	for d := -10; d <= 120; d++ {
		status, days := ClassifyExpiry(today, today.AddDate(0, 0, d), windows)
		assert.Equal(t, d, days)

		rank, ok := order[status]
		assert.True(t, ok, "unknown status %q at day %d", status, d)
		assert.GreaterOrEqual(t, rank, prev, "bucket regressed at day %d", d)
		prev = rank
	}
}
