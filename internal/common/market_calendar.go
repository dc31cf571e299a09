package common

import (
	"fmt"
	"time"
)

// MarketSchedule describes when an exchange's end-of-day data becomes available.
type MarketSchedule struct {
	Timezone         string
	CloseTime        string // HH:MM in Timezone
	DataDelayMinutes int
	WorkingDays      []time.Weekday
	Holidays         []time.Time
}

// USMarketSchedule is the NYSE/NASDAQ session: 16:00 New York close, EOD data ~15 minutes later.
func USMarketSchedule() MarketSchedule {
	return MarketSchedule{
		Timezone:         "America/New_York",
		CloseTime:        "16:00",
		DataDelayMinutes: 15,
		WorkingDays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// IsWorkingDay reports whether t falls on a working weekday that is not a holiday.
func IsWorkingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) bool {
	isWorkDay := false
	for _, wd := range workingDays {
		if wd == t.Weekday() {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	day := dateOnly(t)
	for _, h := range holidays {
		if day.Equal(dateOnly(h)) {
			return false
		}
	}
	return true
}

// LastTradingDay returns the most recent trading day on or before t.
// Walks back at most 10 days, which covers long holiday runs.
func LastTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	current := dateOnly(t)
	for i := 0; i < 10; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}
	return dateOnly(t)
}

// NextTradingDay returns the first trading day strictly after t.
func NextTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	current := dateOnly(t).AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, 1)
	}
	return dateOnly(t).AddDate(0, 0, 1)
}

// DataAvailableTime returns, in UTC, when EOD data for tradingDay is published.
func DataAvailableTime(tradingDay time.Time, closeTime string, timezone string, delayMinutes int) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	hour, min := 16, 0
	if closeTime != "" {
		if _, err := fmt.Sscanf(closeTime, "%d:%d", &hour, &min); err != nil {
			return time.Time{}, fmt.Errorf("invalid close time %q: %w", closeTime, err)
		}
	}

	closeAt := time.Date(tradingDay.Year(), tradingDay.Month(), tradingDay.Day(), hour, min, 0, 0, loc)
	return closeAt.Add(time.Duration(delayMinutes) * time.Minute).UTC(), nil
}

// LatestDataAvailable returns the publication time of the newest EOD data
// already available at now.
func (m MarketSchedule) LatestDataAvailable(now time.Time) (time.Time, error) {
	now = now.UTC()
	day := LastTradingDay(now, m.WorkingDays, m.Holidays)
	for i := 0; i < 10; i++ {
		available, err := DataAvailableTime(day, m.CloseTime, m.Timezone, m.DataDelayMinutes)
		if err != nil {
			return time.Time{}, err
		}
		if !available.After(now) {
			return available, nil
		}
		day = LastTradingDay(day.AddDate(0, 0, -1), m.WorkingDays, m.Holidays)
	}
	return time.Time{}, fmt.Errorf("no trading day found before %s", now.Format(time.RFC3339))
}

// StaleCutoff returns the instant before which an analysis counts as stale.
// It is now-staleAfter, pulled back to the last data publication so records
// analysed after the newest EOD data are never refreshed for nothing.
func (m MarketSchedule) StaleCutoff(now time.Time, staleAfter time.Duration) time.Time {
	cutoff := now.UTC().Add(-staleAfter)
	latest, err := m.LatestDataAvailable(now)
	if err != nil {
		return cutoff
	}
	if latest.Before(cutoff) {
		return latest
	}
	return cutoff
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
