package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, layout, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(layout, value)
	require.NoError(t, err, "parse %q", value)
	return parsed
}

func parseDays(t *testing.T, values []string) []time.Time {
	var out []time.Time
	for _, v := range values {
		out = append(out, mustTime(t, "2006-01-02", v))
	}
	return out
}

func TestIsWorkingDay(t *testing.T) {
	workingDays := USMarketSchedule().WorkingDays

	tests := []struct {
		name        string
		date        string
		holidays    []string
		wantWorking bool
	}{
		{"monday", "2025-01-06", nil, true},
		{"friday", "2025-01-10", nil, true},
		{"saturday", "2025-01-11", nil, false},
		{"sunday", "2025-01-12", nil, false},
		{"holiday on monday", "2025-01-06", []string{"2025-01-06"}, false},
		{"holiday on different day", "2025-01-07", []string{"2025-01-06"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date := mustTime(t, "2006-01-02", tt.date)
			assert.Equal(t, tt.wantWorking, IsWorkingDay(date, workingDays, parseDays(t, tt.holidays)))
		})
	}
}

func TestLastAndNextTradingDay(t *testing.T) {
	workingDays := USMarketSchedule().WorkingDays

	tests := []struct {
		name     string
		date     string
		holidays []string
		wantLast string
		wantNext string
	}{
		{"wednesday", "2025-01-08", nil, "2025-01-08", "2025-01-09"},
		{"saturday", "2025-01-11", nil, "2025-01-10", "2025-01-13"},
		{"friday", "2025-01-10", nil, "2025-01-10", "2025-01-13"},
		{"monday holiday", "2025-01-06", []string{"2025-01-06"}, "2025-01-03", "2025-01-07"},
		{"next skips holiday", "2025-01-10", []string{"2025-01-13"}, "2025-01-10", "2025-01-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date := mustTime(t, "2006-01-02", tt.date)
			holidays := parseDays(t, tt.holidays)
			assert.Equal(t, tt.wantLast, LastTradingDay(date, workingDays, holidays).Format("2006-01-02"))
			assert.Equal(t, tt.wantNext, NextTradingDay(date, workingDays, holidays).Format("2006-01-02"))
		})
	}
}

func TestDataAvailableTime(t *testing.T) {
	day := mustTime(t, "2006-01-02", "2025-01-08")

	got, err := DataAvailableTime(day, "16:00", "America/New_York", 15)
	require.NoError(t, err)
	// 16:15 EST == 21:15 UTC
	assert.Equal(t, 21, got.Hour())
	assert.Equal(t, 15, got.Minute())

	_, err = DataAvailableTime(day, "16:00", "Invalid/Timezone", 15)
	assert.Error(t, err)

	_, err = DataAvailableTime(day, "close", "America/New_York", 15)
	assert.Error(t, err)
}

func TestMarketSchedule_StaleCutoff(t *testing.T) {
	schedule := USMarketSchedule()
	layout := "2006-01-02 15:04 MST"

	tests := []struct {
		name       string
		now        string
		staleAfter time.Duration
		want       string
	}{
		{
			name:       "weekday after publication uses window",
			now:        "2025-01-08 22:00 UTC",
			staleAfter: 24 * time.Hour,
			want:       "2025-01-07 22:00 UTC",
		},
		{
			name:       "monday morning pulls back to friday data",
			now:        "2025-01-13 06:00 UTC",
			staleAfter: 24 * time.Hour,
			want:       "2025-01-10 21:15 UTC",
		},
		{
			name:       "short window keeps plain cutoff",
			now:        "2025-01-08 22:00 UTC",
			staleAfter: time.Hour,
			want:       "2025-01-08 21:00 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := mustTime(t, layout, tt.now)
			want := mustTime(t, layout, tt.want)
			assert.True(t, want.Equal(schedule.StaleCutoff(now, tt.staleAfter)), "got %s", schedule.StaleCutoff(now, tt.staleAfter))
		})
	}
}
