package timeutil

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

// DefaultPeriod bounds "recent transactions" queries when no period is given.
const DefaultPeriod = "30d"

// Window represents a normalized rolling time window anchored to a location.
type Window struct {
	period string
	start  time.Time
	end    time.Time
	loc    *time.Location
}

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// NewWindow constructs a rolling window for the requested period (e.g., "7d", "24h").
func NewWindow(period string, now time.Time, loc *time.Location) (Window, error) {
	loc = EnsureLocation(loc)
	now = now.In(loc)
	dur, err := durationFromPeriod(period)
	if err != nil {
		return Window{}, err
	}
	return Window{
		period: normalizePeriod(period),
		start:  now.Add(-dur),
		end:    now,
		loc:    loc,
	}, nil
}

// Period returns the normalized period string (e.g., "7d").
func (w Window) Period() string { return w.period }

// Start returns the inclusive start of the window.
func (w Window) Start() time.Time { return w.start }

// End returns the exclusive end of the window.
func (w Window) End() time.Time { return w.end }

// Location returns the reporting timezone for the window.
func (w Window) Location() *time.Location { return EnsureLocation(w.loc) }

// StartString returns the start timestamp formatted as RFC3339 in the window's zone.
func (w Window) StartString() string { return w.start.In(w.Location()).Format(time.RFC3339) }

// EndString returns the end timestamp formatted as RFC3339 in the window's zone.
func (w Window) EndString() string { return w.end.In(w.Location()).Format(time.RFC3339) }

// Contains reports whether the timestamp falls within [start, end).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.start) && ts.Before(w.end)
}

func durationFromPeriod(period string) (time.Duration, error) {
	p := normalizePeriod(period)
	if len(p) < 2 {
		return 0, ErrInvalidPeriod
	}
	unit := p[len(p)-1]
	value, err := strconv.Atoi(p[:len(p)-1])
	if err != nil || value <= 0 {
		return 0, ErrInvalidPeriod
	}
	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	default:
		return 0, ErrInvalidPeriod
	}
}

func normalizePeriod(period string) string {
	return strings.ToLower(strings.TrimSpace(period))
}
