package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultOffsetHours anchors scheduling math to UTC-5 (America/Lima, no DST).
const DefaultOffsetHours = -5

const dateLayout = "2006-01-02"

// Clock produces wall-clock values pinned to a fixed UTC offset, independent of
// the host machine's local timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New builds a clock anchored at the given UTC offset in hours.
func New(offsetHours int) *Clock {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Clock{
		loc: time.FixedZone(name, offsetHours*3600),
		now: time.Now,
	}
}

// WithNow returns a copy of the clock reading the current instant from fn.
func (c *Clock) WithNow(fn func() time.Time) *Clock {
	cp := *c
	cp.now = fn
	return &cp
}

// Location exposes the anchored zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant expressed in the anchored zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current date at midnight in the anchored zone.
func (c *Clock) Today() time.Time {
	return c.DateOf(c.Now())
}

// MakeDate builds an instant from wall-clock fields in the anchored zone. The
// optional clock values are hour, minute and second, in that order.
func (c *Clock) MakeDate(year int, month time.Month, day int, clockValues ...int) time.Time {
	var hms [3]int
	copy(hms[:], clockValues)
	return time.Date(year, month, day, hms[0], hms[1], hms[2], 0, c.loc)
}

// DateOf truncates t to midnight of its calendar day in the anchored zone.
func (c *Clock) DateOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// StoredDate rebuilds a calendar date read back from a DATE column. The
// driver returns those as midnight UTC, so the year, month and day are taken
// as recorded instead of converting the instant into the anchored zone.
func (c *Clock) StoredDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// AddDays moves a date by n calendar days keeping it at midnight.
func (c *Clock) AddDays(date time.Time, n int) time.Time {
	d := c.DateOf(date)
	return time.Date(d.Year(), d.Month(), d.Day()+n, 0, 0, 0, 0, c.loc)
}

// ParseDate parses a YYYY-MM-DD string as a date in the anchored zone.
func (c *Clock) ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t, nil
}

// FormatDate renders the calendar day of t in the anchored zone.
func (c *Clock) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// Combine joins the calendar day of date with a "HH:MM" (or "HH:MM AM/PM")
// time of day.
func (c *Clock) Combine(date time.Time, timeOfDay string) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	d := date.In(c.loc)
	return c.MakeDate(d.Year(), d.Month(), d.Day(), hour, minute, 0), nil
}

// ParseTimeOfDay accepts 24-hour "HH:MM" values and 12-hour "HH:MM AM" values.
func ParseTimeOfDay(raw string) (int, int, error) {
	value := strings.TrimSpace(strings.ToLower(raw))
	if value == "" {
		return 0, 0, fmt.Errorf("time of day is empty")
	}

	period := ""
	if strings.HasSuffix(value, "am") || strings.HasSuffix(value, "pm") {
		period = value[len(value)-2:]
		value = strings.TrimSpace(value[:len(value)-2])
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}

	switch period {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid hour in %q", raw)
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid hour in %q", raw)
		}
		if hour != 12 {
			hour += 12
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q out of range", raw)
	}
	return hour, minute, nil
}
