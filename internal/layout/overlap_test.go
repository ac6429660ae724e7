package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gridcal/internal/model"
)

var testDay = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// ev builds a timed test event on testDay from "HH:MM" strings.
func ev(id, start, end string) model.Event {
	return model.Event{
		ID:    id,
		Start: at(start),
		End:   at(end),
	}
}

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return testDay.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b model.Event
		want bool
	}{
		{
			name: "partial overlap",
			a:    ev("a", "09:00", "10:00"),
			b:    ev("b", "09:30", "10:30"),
			want: true,
		},
		{
			name: "containment",
			a:    ev("a", "09:00", "12:00"),
			b:    ev("b", "10:00", "11:00"),
			want: true,
		},
		{
			name: "identical intervals",
			a:    ev("a", "09:00", "10:00"),
			b:    ev("b", "09:00", "10:00"),
			want: true,
		},
		{
			name: "touching endpoints do not overlap",
			a:    ev("a", "09:00", "10:00"),
			b:    ev("b", "10:00", "11:00"),
			want: false,
		},
		{
			name: "disjoint",
			a:    ev("a", "09:00", "10:00"),
			b:    ev("b", "11:00", "12:00"),
			want: false,
		},
		{
			name: "one minute of overlap",
			a:    ev("a", "09:00", "10:01"),
			b:    ev("b", "10:00", "11:00"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			// Overlap is symmetric.
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a))
		})
	}
}
