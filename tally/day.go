package tally

import (
	"time"
)

// DayLayout is the day key format; keys compare lexically in calendar order.
const DayLayout = "2006-01-02"

// DefaultOffsetMinutes is UTC-3 (Brasília), which no longer observes DST.
const DefaultOffsetMinutes = -180

// ReferenceZone returns a fixed zone offsetMinutes east of UTC.
func ReferenceZone(offsetMinutes int) *time.Location {
	return time.FixedZone("REF", offsetMinutes*60)
}

// DayKey returns the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ValidDay reports whether s is a well formed day key.
func ValidDay(s string) bool {
	d, err := time.Parse(DayLayout, s)
	return err == nil && d.Format(DayLayout) == s
}

// AddDays shifts a day key; it returns "" for malformed input.
func AddDays(day string, n int) string {
	d, err := time.Parse(DayLayout, day)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, n).Format(DayLayout)
}

// Session is the explicit per-request state of one voter on one day.
type Session struct {
	Voter string `json:"voter"`
	Day   string `json:"day"`
	Voted bool   `json:"voted"`
}

// State names the voter's position in the NOT_VOTED -> VOTED machine.
func (s Session) State() string {
	if s.Voted {
		return "voted"
	}
	return "not_voted"
}
