package model

import "time"

// Event is the engine-facing view of a single calendar entry: one concrete
// occurrence after recurrence expansion and timezone normalization. The
// layout engine treats it as read-only input and never mutates it.
//
// Invariant (caller contract): for events entering the layout engine,
// Start < End. The engine performs no validation of its own; degenerate
// intervals produce undefined geometry.
type Event struct {
	// ID uniquely identifies this occurrence. For ICS-backed events it is
	// derived from the VEVENT UID plus the per-instance key, so recurring
	// instances stay distinguishable.
	ID string

	SourceID string // calendar source ID (e.g., config ICS ID)

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
