package dashboard

import (
	"sort"
	"time"
)

// All disables a categorical filter.
const All = "All"

const dateLayout = "2006-01-02"

// Filter narrows the policy metrics. Zero dates leave that side of the
// inception range open; "" or All disables a categorical filter.
type Filter struct {
	From   time.Time
	To     time.Time
	Agent  string
	Status string
	LOB    string
}

// Match reports whether m passes every filter. The date range is inclusive
// on both ends and compares calendar days.
func (f Filter) Match(m PolicyMetric) bool {
	if !f.From.IsZero() || !f.To.IsZero() {
		if m.InceptionDate.IsZero() {
			return false
		}
		d := day(m.InceptionDate)
		if !f.From.IsZero() && d.Before(day(f.From)) {
			return false
		}
		if !f.To.IsZero() && d.After(day(f.To)) {
			return false
		}
	}
	return matches(f.Agent, m.Agent()) &&
		matches(f.Status, m.Status) &&
		matches(f.LOB, m.LineOfBusiness)
}

func matches(want, got string) bool {
	return want == "" || want == All || want == got
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Apply returns the rows matching f, in their original order.
func Apply(rows []PolicyMetric, f Filter) []PolicyMetric {
	out := make([]PolicyMetric, 0, len(rows))
	for _, m := range rows {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// Options lists the values the filters can take. Every list starts with All.
type Options struct {
	MinDate         string   `json:"min_date"`
	MaxDate         string   `json:"max_date"`
	Agents          []string `json:"agents"`
	Statuses        []string `json:"statuses"`
	LinesOfBusiness []string `json:"lines_of_business"`
}

// FilterOptions derives the filter domain from the unfiltered rows.
func FilterOptions(rows []PolicyMetric) Options {
	var lo, hi time.Time
	agents, statuses, lobs := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, m := range rows {
		if d := m.InceptionDate; !d.IsZero() {
			if lo.IsZero() || d.Before(lo) {
				lo = d
			}
			if hi.IsZero() || d.After(hi) {
				hi = d
			}
		}
		agents[m.Agent()] = true
		statuses[m.Status] = true
		lobs[m.LineOfBusiness] = true
	}
	return Options{
		MinDate:         formatDate(lo),
		MaxDate:         formatDate(hi),
		Agents:          withAll(agents),
		Statuses:        withAll(statuses),
		LinesOfBusiness: withAll(lobs),
	}
}

func withAll(set map[string]bool) []string {
	out := make([]string, 0, len(set)+1)
	for v := range set {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return append([]string{All}, out...)
}
