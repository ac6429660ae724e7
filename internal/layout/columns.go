package layout

import (
	"sort"

	"gridcal/internal/model"
)

// Placement is the column slot assigned to one event within its cluster.
type Placement struct {
	ColumnIndex  int
	TotalColumns int
}

// AssignColumns assigns each event in the group a column such that no two
// overlapping events share one, and returns the placements keyed by event ID.
//
// Events are placed in (Start asc, End asc) order. This exact tie-break is
// part of the visual contract, not cosmetic: an unchanged event set must
// render identically across refreshes. Each event goes into the first column
// (in creation order) whose members it does not overlap; if none fits, a new
// column is opened at the end. TotalColumns is the number of columns opened,
// reported identically by every event in the group.
//
// The greedy first-fit is deliberately not a minimum coloring. It matches
// conventional calendar side-by-side stacking, and column order decides which
// events appear left vs. right, so substituting a "better" coloring would
// change the rendered output. Do not improve this without agreeing a new
// visual contract with the UI.
func AssignColumns(group OverlapGroup) map[string]Placement {
	events := make([]model.Event, len(group.Events))
	copy(events, group.Events)
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].End.Before(events[j].End)
	})

	columns := make([][]model.Event, 0)
	columnOf := make(map[string]int, len(events))

placing:
	for _, ev := range events {
		for ci, col := range columns {
			fits := true
			for _, placed := range col {
				if Overlaps(ev, placed) {
					fits = false
					break
				}
			}
			if fits {
				columns[ci] = append(columns[ci], ev)
				columnOf[ev.ID] = ci
				continue placing
			}
		}
		columns = append(columns, []model.Event{ev})
		columnOf[ev.ID] = len(columns) - 1
	}

	total := len(columns)
	placements := make(map[string]Placement, len(events))
	for id, ci := range columnOf {
		placements[id] = Placement{ColumnIndex: ci, TotalColumns: total}
	}

	return placements
}
