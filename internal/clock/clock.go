// Package clock decides what "today" means for the application.
// Core packages receive pre-truncated days from a Calendar and never
// read the wall clock themselves.
package clock

import (
	"fmt"
	"time"
)

// Calendar truncates instants to calendar days in a fixed location
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Calendar for the named IANA zone. An empty name means UTC.
func New(zone string) (*Calendar, error) {
	if zone == "" {
		return &Calendar{loc: time.UTC, now: time.Now}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", zone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// WithNow returns a copy of the calendar that reads time from now
func (c *Calendar) WithNow(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// Location returns the calendar's time zone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the calendar's location
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns midnight of the current day in the calendar's location
func (c *Calendar) Today() time.Time {
	return c.Truncate(c.now())
}

// Truncate returns midnight of the day containing t
func (c *Calendar) Truncate(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// DaysAgo returns midnight n days before today
func (c *Calendar) DaysAgo(n int) time.Time {
	return c.Today().AddDate(0, 0, -n)
}
