package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expandWindow(start, end time.Time) ExpandConfig {
	return ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      start,
		RangeEnd:        end,
	}
}

func TestExpandOccurrences_SingleEvent(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		Source:  Source{ID: "team"},
		UID:     "single@example.com",
		Summary: "Planning",
		Start:   base,
		End:     base.Add(time.Hour),
	}

	res, err := ExpandOccurrences([]ParsedEvent{ev},
		expandWindow(base.AddDate(0, 0, -1), base.AddDate(0, 0, 7)))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	got := res.Events[0]
	assert.Equal(t, "single@example.com/2025-06-02T09:00:00Z", got.ID)
	assert.Equal(t, "team", got.SourceID)
	assert.Equal(t, base, got.Start)
	assert.Equal(t, base.Add(time.Hour), got.End)
}

func TestExpandOccurrences_OutsideRangeIsSkipped(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:   "single@example.com",
		Start: base,
		End:   base.Add(time.Hour),
	}

	res, err := ExpandOccurrences([]ParsedEvent{ev},
		expandWindow(base.AddDate(0, 1, 0), base.AddDate(0, 2, 0)))
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestExpandOccurrences_DailyRecurrence(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:      "daily@example.com",
		Summary:  "Standup",
		Start:    base,
		End:      base.Add(30 * time.Minute),
		RawRRule: "FREQ=DAILY;COUNT=5",
	}

	res, err := ExpandOccurrences([]ParsedEvent{ev},
		expandWindow(base.AddDate(0, 0, -1), base.AddDate(0, 0, 10)))
	require.NoError(t, err)
	require.Len(t, res.Events, 5)

	// Occurrences preserve duration and carry unique IDs.
	seen := make(map[string]bool)
	for _, occ := range res.Events {
		assert.Equal(t, 30*time.Minute, occ.End.Sub(occ.Start))
		assert.False(t, seen[occ.ID], "duplicate occurrence ID %s", occ.ID)
		seen[occ.ID] = true
	}
}

func TestExpandOccurrences_ExDateRemovesInstance(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:      "daily@example.com",
		Start:    base,
		End:      base.Add(time.Hour),
		RawRRule: "FREQ=DAILY;COUNT=5",
		ExDates:  []time.Time{base.AddDate(0, 0, 2)},
	}

	res, err := ExpandOccurrences([]ParsedEvent{ev},
		expandWindow(base.AddDate(0, 0, -1), base.AddDate(0, 0, 10)))
	require.NoError(t, err)
	require.Len(t, res.Events, 4)

	for _, occ := range res.Events {
		assert.NotEqual(t, 4, occ.Start.Day(), "excluded instance still present")
	}
}

func TestExpandOccurrences_RecurrenceOverride(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	overrideStart := base.AddDate(0, 0, 1)
	movedStart := overrideStart.Add(2 * time.Hour)

	baseEv := ParsedEvent{
		UID:      "daily@example.com",
		Summary:  "Standup",
		Start:    base,
		End:      base.Add(30 * time.Minute),
		RawRRule: "FREQ=DAILY;COUNT=3",
	}
	override := ParsedEvent{
		UID:        "daily@example.com",
		Summary:    "Standup (moved)",
		Start:      movedStart,
		End:        movedStart.Add(30 * time.Minute),
		Recurrence: &overrideStart,
		IsOverride: true,
	}

	res, err := ExpandOccurrences([]ParsedEvent{baseEv, override},
		expandWindow(base.AddDate(0, 0, -1), base.AddDate(0, 0, 10)))
	require.NoError(t, err)
	require.Len(t, res.Events, 3)

	var moved int
	for _, occ := range res.Events {
		if occ.Summary == "Standup (moved)" {
			moved++
			assert.Equal(t, movedStart, occ.Start)
		}
	}
	assert.Equal(t, 1, moved)
}

func TestExpandOccurrences_AllDayRecurring(t *testing.T) {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:      "holiday@example.com",
		Start:    base,
		End:      base.Add(24 * time.Hour),
		AllDay:   true,
		RawRRule: "FREQ=WEEKLY;COUNT=2",
	}

	res, err := ExpandOccurrences([]ParsedEvent{ev},
		expandWindow(base.AddDate(0, 0, -1), base.AddDate(0, 1, 0)))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	for _, occ := range res.Events {
		assert.True(t, occ.AllDay)
		assert.Equal(t, 24*time.Hour, occ.End.Sub(occ.Start))
		assert.Equal(t, 0, occ.Start.Hour())
	}
}

func TestExpandOccurrences_CapTruncates(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:      "busy@example.com",
		Start:    base,
		End:      base.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
	}

	cfg := expandWindow(base, base.AddDate(1, 0, 0))
	cfg.MaxOccurrencesPerEvent = 10

	res, err := ExpandOccurrences([]ParsedEvent{ev}, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Events, 10)
	assert.Equal(t, []string{"busy@example.com"}, res.TruncatedUIDs)
}

func TestExpandOccurrences_InvalidRange(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	_, err := ExpandOccurrences(nil, expandWindow(base, base.AddDate(0, 0, -1)))
	assert.Error(t, err)
}

func TestExpandOccurrences_DisplayTimezoneConversion(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:   "tz@example.com",
		Start: base,
		End:   base.Add(time.Hour),
	}

	cfg := expandWindow(base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	cfg.DisplayLocation = seoul

	res, err := ExpandOccurrences([]ParsedEvent{ev}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	got := res.Events[0]
	assert.Equal(t, seoul, got.Start.Location())
	assert.Equal(t, 18, got.Start.Hour()) // 09:00 UTC == 18:00 KST
	assert.True(t, got.Start.Equal(base))
}
