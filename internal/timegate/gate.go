// Package timegate decides whether a check cycle should run at a given instant.
package timegate

import (
	"time"
)

// Default operating window of the registry, in its local time.
const (
	DefaultOpenHour  = 9
	DefaultCloseHour = 18
)

// Gate allows cycles on weekdays within [openHour, closeHour) local time.
type Gate struct {
	loc       *time.Location
	openHour  int
	closeHour int
}

// New creates a Gate. A nil location falls back to UTC.
func New(loc *time.Location, openHour, closeHour int) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{
		loc:       loc,
		openHour:  openHour,
		closeHour: closeHour,
	}
}

// ShouldRun reports whether a cycle may execute at now.
func (g *Gate) ShouldRun(now time.Time) bool {
	local := now.In(g.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= g.openHour && hour < g.closeHour
}

// Reason explains a negative ShouldRun result for logging.
func (g *Gate) Reason(now time.Time) string {
	local := now.In(g.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return "weekend"
	}
	hour := local.Hour()
	if hour < g.openHour || hour >= g.closeHour {
		return "outside business hours"
	}
	return ""
}

// Location returns the operating timezone.
func (g *Gate) Location() *time.Location {
	return g.loc
}
