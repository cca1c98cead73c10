// Package markethours knows the NYSE regular session. Crypto pairs trade
// around the clock and are always reported open.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"signaldesk/internal/model"
)

// NewYork is the exchange time zone.
var NewYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("markethours: load %s: %v", name, err))
	}
	return loc
}

// Market hours in New York time
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0

	// EarlyCloseHour applies on half days.
	EarlyCloseHour = 13
)

// IsOpen reports whether class trades at t.
func IsOpen(class model.AssetClass, t time.Time) bool {
	if class == model.AssetCrypto {
		return true
	}
	return IsMarketOpen(t)
}

// IsMarketOpen returns true if t falls within NYSE regular trading hours
// (9:30 AM - 4:00 PM New York, Mon-Fri, excluding holidays, 1:00 PM on half days).
func IsMarketOpen(t time.Time) bool {
	ny := t.In(NewYork)
	if !IsTradingDay(ny) {
		return false
	}
	return !ny.Before(todayOpen(ny)) && ny.Before(TodayClose(ny))
}

// IsWeekday returns true if t is Mon-Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(NewYork).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ny := t.In(NewYork)
	return IsWeekday(ny) && !IsHoliday(ny)
}

func todayOpen(ny time.Time) time.Time {
	return time.Date(ny.Year(), ny.Month(), ny.Day(), OpenHour, OpenMinute, 0, 0, NewYork)
}

// NextOpen returns the next market open. If t is before today's open on a
// trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	ny := t.In(NewYork)

	// Try today first
	if open := todayOpen(ny); ny.Before(open) && IsTradingDay(ny) {
		return open
	}

	// Otherwise find the next trading day
	d := ny.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // max 10 days ahead (holidays + weekends)
		if IsTradingDay(d) {
			return todayOpen(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	// Fallback: next day
	return todayOpen(ny.AddDate(0, 0, 1))
}

// TodayClose returns the close on t's New York date.
func TodayClose(t time.Time) time.Time {
	ny := t.In(NewYork)
	hour := CloseHour
	if IsEarlyClose(ny) {
		hour = EarlyCloseHour
	}
	return time.Date(ny.Year(), ny.Month(), ny.Day(), hour, CloseMinute, 0, 0, NewYork)
}

// TimeUntilClose returns the duration until today's close.
// Returns 0 if market is already closed.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	ny := next.In(NewYork)
	return fmt.Sprintf("Market Closed, opens %s %s ET (%s)",
		ny.Weekday().String()[:3], ny.Format("15:04"), fmtDur(next.Sub(t)))
}

// Status is StatusString for class. Crypto trades around the clock.
func Status(class model.AssetClass, t time.Time) string {
	if class == model.AssetCrypto {
		return "Open 24/7"
	}
	return StatusString(t)
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
