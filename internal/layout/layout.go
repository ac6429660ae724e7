package layout

import (
	"sort"

	"gridcal/internal/model"
)

// LayoutedEvent is an Event plus its computed position within the day grid.
//
// Invariants:
//   - ColumnIndex < TotalColumns
//   - every event sharing a ClusterID reports the same TotalColumns
//   - two events in the same cluster with equal ColumnIndex never overlap
type LayoutedEvent struct {
	model.Event

	ClusterID    int
	ColumnIndex  int
	TotalColumns int
}

// Layout runs the full pipeline: filter out all-day events, build overlap
// clusters, and assign columns within each cluster. The result is ordered by
// (Start asc, End asc), stable on ties, so an unchanged input always
// produces identical output.
//
// All-day events are excluded here; the caller renders those separately in
// its own all-day section, outside the timed grid.
func Layout(events []model.Event) []LayoutedEvent {
	timed := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		timed = append(timed, ev)
	}
	if len(timed) == 0 {
		return nil
	}

	out := make([]LayoutedEvent, 0, len(timed))
	for _, group := range BuildClusters(timed) {
		placements := AssignColumns(group)
		for _, ev := range group.Events {
			p := placements[ev.ID]
			out = append(out, LayoutedEvent{
				Event:        ev,
				ClusterID:    group.ClusterID,
				ColumnIndex:  p.ColumnIndex,
				TotalColumns: p.TotalColumns,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].End.Before(out[j].End)
	})

	return out
}
