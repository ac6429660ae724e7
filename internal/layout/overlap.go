// Package layout computes the day-grid arrangement for calendar events:
// overlap clustering, greedy column assignment, and pixel geometry for the
// rendered view. All functions are pure; the only mutable state is the
// optional Cache, which callers construct and own explicitly.
package layout

import "gridcal/internal/model"

// Overlaps reports whether the two events' intervals overlap, using
// half-open semantics: a.Start < b.End && b.Start < a.End.
//
// Intervals that merely touch at an endpoint (one event ending exactly when
// another begins) do NOT overlap. This matters for back-to-back meetings,
// which must be allowed to share a column.
func Overlaps(a, b model.Event) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
