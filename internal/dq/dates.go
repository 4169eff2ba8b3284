package dq

import (
	"strings"
	"time"
)

// DefaultLayouts are tried in order when a date cell is parsed.
var DefaultLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// MinDate is the earliest date accepted by ValidDate.
var MinDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateParser parses raw date cells with an ordered list of layouts.
type DateParser struct {
	Layouts []string
}

// Parse returns the first successful parse. NULL cells never parse.
func (p DateParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := p.Layouts
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateWindow is the inclusive range a valid date must fall in.
type DateWindow struct {
	Parser DateParser
	Min    time.Time
	Max    time.Time
}

// NewDateWindow returns the window [MinDate, now+horizonYears].
func NewDateWindow(now time.Time, horizonYears int, layouts []string) DateWindow {
	return DateWindow{
		Parser: DateParser{Layouts: layouts},
		Min:    MinDate,
		Max:    now.AddDate(horizonYears, 0, 0),
	}
}

// Valid reports whether s parses and lies within the window.
func (w DateWindow) Valid(s string) bool {
	t, ok := w.Parser.Parse(s)
	if !ok {
		return false
	}
	return !t.Before(w.Min) && !t.After(w.Max)
}
