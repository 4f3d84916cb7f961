// Package scheduling holds the pure session calendar engine: holiday filtering,
// session generation, lifecycle state derivation, reschedule cascades and
// archive snapshots. Nothing in here performs I/O.
package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

// Weekdays is a set of allowed weekdays stored as a bitmask.
type Weekdays uint8

// NewWeekdays builds a weekday set.
func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

// Contains reports whether d is part of the set.
func (w Weekdays) Contains(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// Empty reports whether no weekday is allowed.
func (w Weekdays) Empty() bool {
	return w == 0
}

// Days lists the weekdays in the set, Sunday first.
func (w Weekdays) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// Calendar decides which dates can hold a session. Holidays are compared by
// calendar day in the clock's zone only.
type Calendar struct {
	clock    *clock.Clock
	holidays map[string]struct{}
}

// NewCalendar parses YYYY-MM-DD holiday strings into a calendar.
func NewCalendar(clk *clock.Clock, holidays []string) (*Calendar, error) {
	cal := &Calendar{clock: clk, holidays: make(map[string]struct{}, len(holidays))}
	for _, raw := range holidays {
		d, err := clk.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("holiday: %w", err)
		}
		cal.holidays[clk.FormatDate(d)] = struct{}{}
	}
	return cal, nil
}

// Clock exposes the calendar's anchored clock.
func (c *Calendar) Clock() *clock.Clock {
	return c.clock
}

// Holidays returns the configured holidays sorted ascending.
func (c *Calendar) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// IsHoliday compares year, month and day only.
func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.holidays[c.clock.FormatDate(date)]
	return ok
}

// IsSchedulable is true when the weekday is allowed and the day is not a holiday.
func (c *Calendar) IsSchedulable(date time.Time, weekdays Weekdays) bool {
	if !weekdays.Contains(date.In(c.clock.Location()).Weekday()) {
		return false
	}
	return !c.IsHoliday(date)
}

// NextSchedulableDate returns the first schedulable day on or after cursor,
// looking at most horizonDays days ahead.
func (c *Calendar) NextSchedulableDate(cursor time.Time, weekdays Weekdays, horizonDays int) (time.Time, bool) {
	day := c.clock.DateOf(cursor)
	for i := 0; i < horizonDays; i++ {
		if c.IsSchedulable(day, weekdays) {
			return day, true
		}
		day = c.clock.AddDays(day, 1)
	}
	return time.Time{}, false
}

// CascadeDates walks forward from cursor and returns n consecutive
// schedulable dates. It stops early when the horizon is exhausted for one of
// them and reports false.
func (c *Calendar) CascadeDates(cursor time.Time, n int, weekdays Weekdays, horizonDays int) ([]time.Time, bool) {
	dates := make([]time.Time, 0, n)
	for len(dates) < n {
		next, ok := c.NextSchedulableDate(cursor, weekdays, horizonDays)
		if !ok {
			return dates, false
		}
		dates = append(dates, next)
		cursor = c.clock.AddDays(next, 1)
	}
	return dates, true
}
