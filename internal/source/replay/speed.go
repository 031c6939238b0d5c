package replay

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Speed selects the delay between replayed lines.
type Speed uint8

const (
	// SpeedFast200 waits 5ms per line and is the default.
	SpeedFast200 Speed = iota
	// SpeedRealTime waits one second per line.
	SpeedRealTime
	// SpeedFast50 waits 20ms per line.
	SpeedFast50
	// SpeedFast500 waits 2ms per line.
	SpeedFast500
	// SpeedInstant does not wait.
	SpeedInstant
	// SpeedStep emits one line per StepNext call.
	SpeedStep
)

// ErrUnknownSpeed is returned by ParseSpeed for unrecognized names.
var ErrUnknownSpeed = errors.New("unknown replay speed")

//nolint:gochecknoglobals // Lookup table.
var speedNames = map[Speed]string{
	SpeedRealTime: "realtime",
	SpeedFast50:   "fast50",
	SpeedFast200:  "fast200",
	SpeedFast500:  "fast500",
	SpeedInstant:  "instant",
	SpeedStep:     "step",
}

// ParseSpeed accepts the names printed by Speed.String, case-insensitively.
// An empty string selects the default.
func ParseSpeed(s string) (Speed, error) {
	if s == "" {
		return SpeedFast200, nil
	}

	for speed, name := range speedNames {
		if strings.EqualFold(s, name) {
			return speed, nil
		}
	}

	return 0, fmt.Errorf("%w %q", ErrUnknownSpeed, s)
}

// String returns the speed name.
func (s Speed) String() string {
	if name, ok := speedNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Speed(%d)", s)
}

// Delay returns the pause after each line.
func (s Speed) Delay() time.Duration {
	switch s {
	case SpeedRealTime:
		return time.Second
	case SpeedFast50:
		return 20 * time.Millisecond
	case SpeedFast500:
		return 2 * time.Millisecond
	case SpeedInstant, SpeedStep:
		return 0
	default:
		return 5 * time.Millisecond
	}
}
