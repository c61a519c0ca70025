// Package calendar implements the freshness predicate shared by the
// Freshness Gate and the Slug Index Merger: whether a date range is
// "active" relative to a reference date.
package calendar

import "time"

// Active reports whether a date range with the given start/end is active
// relative to today, following the three-way rule: a range with no start
// is never active; a range that has not yet ended (or has no end at all)
// is active, including one whose start is still in the future; a range
// whose end date has passed is not active. In other words this predicate
// answers "not yet expired", not "currently running" — a not-yet-started
// service is still considered active so it is not prematurely dropped.
func Active(start, end *time.Time, today time.Time) bool {
	if start == nil {
		return false
	}
	if end == nil {
		return true
	}
	return !today.After(*end)
}
