package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func layouted(id, start, end string, col, total int) LayoutedEvent {
	return LayoutedEvent{
		Event:        ev(id, start, end),
		ColumnIndex:  col,
		TotalColumns: total,
	}
}

func TestScale_Project(t *testing.T) {
	scale := Scale{DayStart: testDay, PixelsPerMinute: 1}

	tests := []struct {
		name       string
		event      LayoutedEvent
		wantTop    float64
		wantHeight float64
	}{
		{
			name:       "morning event at one pixel per minute",
			event:      layouted("a", "09:00", "09:30", 0, 2),
			wantTop:    540,
			wantHeight: 30,
		},
		{
			name:       "midnight start",
			event:      layouted("a", "00:00", "01:00", 0, 1),
			wantTop:    0,
			wantHeight: 60,
		},
		{
			name:       "short event gets the minimum height",
			event:      layouted("a", "09:00", "09:05", 0, 1),
			wantTop:    540,
			wantHeight: DefaultMinEventHeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := scale.Project(tt.event)
			assert.Equal(t, tt.wantTop, g.Top)
			assert.Equal(t, tt.wantHeight, g.Height)
		})
	}
}

func TestScale_Project_ClampsBeforeDayStart(t *testing.T) {
	// Grid anchored at 08:00; an event spilling in from earlier is clamped
	// to the top.
	scale := Scale{DayStart: at("08:00"), PixelsPerMinute: 2}

	g := scale.Project(layouted("a", "07:00", "09:00", 0, 1))
	assert.Equal(t, 0.0, g.Top)
	assert.Equal(t, 240.0, g.Height) // full 120 min duration, not the visible part
}

func TestScale_Project_CustomMinHeight(t *testing.T) {
	scale := Scale{DayStart: testDay, PixelsPerMinute: 1, MinEventHeight: 32}

	g := scale.Project(layouted("a", "09:00", "09:10", 0, 1))
	assert.Equal(t, 32.0, g.Height)
}

func TestScale_Style(t *testing.T) {
	scale := Scale{DayStart: testDay, PixelsPerMinute: 1}

	tests := []struct {
		name      string
		event     LayoutedEvent
		wantLeft  float64
		wantWidth float64
	}{
		{
			name:      "first of two columns",
			event:     layouted("a", "09:00", "09:30", 0, 2),
			wantLeft:  0,
			wantWidth: 50,
		},
		{
			name:      "second of two columns",
			event:     layouted("b", "09:00", "09:30", 1, 2),
			wantLeft:  50,
			wantWidth: 50,
		},
		{
			name:      "middle of three columns",
			event:     layouted("b", "09:00", "09:30", 1, 3),
			wantLeft:  100.0 / 3,
			wantWidth: 100.0 / 3,
		},
		{
			name:      "singleton spans the lane",
			event:     layouted("a", "09:00", "09:30", 0, 1),
			wantLeft:  0,
			wantWidth: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := scale.Style(tt.event)
			assert.InDelta(t, tt.wantLeft, st.LeftPercent, 1e-9)
			assert.InDelta(t, tt.wantWidth, st.WidthPercent, 1e-9)
			// Vertical geometry matches Project.
			g := scale.Project(tt.event)
			assert.Equal(t, g.Top, st.Top)
			assert.Equal(t, g.Height, st.Height)
		})
	}
}
