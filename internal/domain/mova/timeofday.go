package mova

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as the offset from midnight.
type TimeOfDay time.Duration

// minTimeOfDayLength excludes short tokens such as "1:2" that are never clock values.
const minTimeOfDayLength = 7

// ParseTimeOfDay parses "H:MM:SS" or "HH:MM:SS" with an optional fractional
// second. Tokens shorter than seven characters or without a colon are rejected.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	if len(s) < minTimeOfDayLength || !strings.Contains(s, ":") {
		return 0, false
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || minutes < 0 || minutes > 59 {
		return 0, false
	}

	secondsText, fraction, hasFraction := strings.Cut(parts[2], ".")

	seconds, err := strconv.Atoi(secondsText)
	if err != nil || len(secondsText) != 2 || seconds < 0 || seconds > 59 {
		return 0, false
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second

	if hasFraction {
		if fraction == "" {
			return 0, false
		}

		value, err := strconv.ParseFloat("0."+fraction, 64)
		if err != nil {
			return 0, false
		}

		total += time.Duration(value * float64(time.Second))
	}

	return TimeOfDay(total), true
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t)
}

// On anchors the time of day to the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(t.Duration())
}

// String renders the value as HH:MM:SS.
func (t TimeOfDay) String() string {
	total := int64(time.Duration(t) / time.Second)

	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, ok := ParseTimeOfDay(string(text))
	if !ok {
		return fmt.Errorf("invalid time of day %q", text)
	}

	*t = parsed

	return nil
}
