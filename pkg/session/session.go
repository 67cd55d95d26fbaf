// Package session stamps trades with canonical timestamps and market session labels.
package session

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
)

// Name is a market session label.
type Name string

const (
	Tokyo   Name = "Tokyo"
	London  Name = "London"
	NewYork Name = "New York"
	Sydney  Name = "Sydney"
)

// DefaultZone is the zone bare local times are read in when no other zone is configured.
var DefaultZone = time.FixedZone("JST", 9*60*60)

// window is a half-open [start, end) range in minutes after local midnight.
// end may exceed 24h for windows that run past midnight.
type window struct {
	name  Name
	start int
	end   int
}

// windows are expressed in the default zone and checked in this order; they overlap,
// and the first window containing the time wins (Tokyo, London, New York, Sydney).
var windows = []window{
	{Tokyo, 9 * 60, 17 * 60},
	{London, 16 * 60, 25 * 60},
	{NewYork, 21 * 60, 30 * 60},
	{Sydney, 6 * 60, 15 * 60},
}

// ForMinute returns the session for a local time of day given in minutes after midnight.
func ForMinute(minute int) (Name, bool) {
	minute = ((minute % (24 * 60)) + 24*60) % (24 * 60)
	for _, w := range windows {
		if (minute >= w.start && minute < w.end) || (minute+24*60 >= w.start && minute+24*60 < w.end) {
			return w.name, true
		}
	}
	return "", false
}

// ForHour returns the session for a whole local hour.
func ForHour(hour int) (Name, bool) {
	return ForMinute(hour * 60)
}

// ForTime returns the session for t as seen in loc.
func ForTime(t time.Time, loc *time.Location) (Name, bool) {
	if t.IsZero() {
		return "", false
	}
	if loc == nil {
		loc = DefaultZone
	}
	local := t.In(loc)
	return ForMinute(local.Hour()*60 + local.Minute())
}

// ForTimestamp resolves an ISO timestamp with offset and returns its session in loc.
// An empty or unparseable timestamp yields no session.
func ForTimestamp(ts string, loc *time.Location) (Name, bool) {
	if ts == "" {
		return "", false
	}
	t, ok := ParseTimestamp(ts)
	if !ok {
		return "", false
	}
	return ForTime(t, loc)
}

// ParseTimestamp reads an ISO-8601 timestamp with an explicit offset, seconds optional.
func ParseTimestamp(ts string) (time.Time, bool) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// offsetLayouts cover every shape isoWithOffset accepts; RFC3339 also reads fractional seconds.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

var isoWithOffset = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:\d{2})$`)

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// ResolveTimestamp returns raw as an ISO-8601 string with an explicit UTC offset.
// Input already in that shape is returned unchanged; anything else is read as a
// local date-time in loc (DefaultZone when nil).
func ResolveTimestamp(raw string, loc *time.Location) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if isoWithOffset.MatchString(raw) {
		return raw, true
	}
	t, ok := ParseLocal(raw, loc)
	if !ok {
		return "", false
	}
	return t.Format(time.RFC3339), true
}

// ParseLocal reads raw as a local date-time in loc.
func ParseLocal(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = DefaultZone
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LoadZone loads a named zone, falling back to DefaultZone.
func LoadZone(name string) *time.Location {
	if name == "" {
		return DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return DefaultZone
	}
	return loc
}
