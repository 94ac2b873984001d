package model

import (
	"strings"
	"time"
)

// Calendar answers "what day is it" in the location shows are scheduled in.
// Tests replace Now with a fixed clock.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

// NewCalendar returns a Calendar backed by the wall clock.  A nil location
// means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Now: time.Now, Location: loc}
}

// Today formats the current date in DateLayout.
func (c Calendar) Today() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc).Format(DateLayout)
}

// IsPast reports whether date lies strictly before today.  Dates in
// DateLayout order lexicographically, so a string compare is enough.
func (c Calendar) IsPast(date string) bool {
	return date < c.Today()
}

// ValidDate reports whether s is a calendar date in DateLayout.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidTime reports whether s is a time of day in TimeLayout.
func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// FoldEqual compares two strings case-insensitively after trimming spaces.
func FoldEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
