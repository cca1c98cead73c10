package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeUnit is the base unit of a bar timeframe.
type TimeUnit string

const (
	UnitMinute TimeUnit = "Min"
	UnitHour   TimeUnit = "Hour"
	UnitDay    TimeUnit = "Day"
)

// Timeframe is a bar interval such as 5Min or 1Day.
type Timeframe struct {
	Amount int      `json:"amount"`
	Unit   TimeUnit `json:"unit"`
}

// Common dashboard timeframes.
var (
	OneMinute      = Timeframe{1, UnitMinute}
	FiveMinutes    = Timeframe{5, UnitMinute}
	FifteenMinutes = Timeframe{15, UnitMinute}
	OneHour        = Timeframe{1, UnitHour}
	OneDay         = Timeframe{1, UnitDay}
)

// DashboardTimeframes lists the intervals offered to users.
var DashboardTimeframes = []Timeframe{OneMinute, FiveMinutes, FifteenMinutes, OneHour, OneDay}

// ParseTimeframe parses strings like "1Min", "15Min", "1Hour", "1Day".
// Accepted multipliers: minutes 1-59, hours 1-23, days 1.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Timeframe{}, fmt.Errorf("timeframe %q: missing amount", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return Timeframe{}, fmt.Errorf("timeframe %q: %w", s, err)
	}

	var unit TimeUnit
	switch strings.ToLower(s[i:]) {
	case "min", "m", "t":
		unit = UnitMinute
	case "hour", "h":
		unit = UnitHour
	case "day", "d":
		unit = UnitDay
	default:
		return Timeframe{}, fmt.Errorf("timeframe %q: unknown unit %q", s, s[i:])
	}

	tf := Timeframe{Amount: n, Unit: unit}
	if err := tf.Validate(); err != nil {
		return Timeframe{}, err
	}
	return tf, nil
}

// Validate checks the multiplier against the unit's limits.
func (t Timeframe) Validate() error {
	max := 0
	switch t.Unit {
	case UnitMinute:
		max = 59
	case UnitHour:
		max = 23
	case UnitDay:
		max = 1
	default:
		return fmt.Errorf("timeframe: unknown unit %q", t.Unit)
	}
	if t.Amount < 1 || t.Amount > max {
		return fmt.Errorf("timeframe: amount %d out of range 1-%d for %s", t.Amount, max, t.Unit)
	}
	return nil
}

// String renders the broker wire form, e.g. "5Min".
func (t Timeframe) String() string {
	return strconv.Itoa(t.Amount) + string(t.Unit)
}

// Duration returns the length of one bar.
func (t Timeframe) Duration() time.Duration {
	switch t.Unit {
	case UnitMinute:
		return time.Duration(t.Amount) * time.Minute
	case UnitHour:
		return time.Duration(t.Amount) * time.Hour
	case UnitDay:
		return time.Duration(t.Amount) * 24 * time.Hour
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler. The zero Timeframe
// encodes as an empty string.
func (t Timeframe) MarshalText() ([]byte, error) {
	if t == (Timeframe{}) {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timeframe) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = Timeframe{}
		return nil
	}
	tf, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*t = tf
	return nil
}
