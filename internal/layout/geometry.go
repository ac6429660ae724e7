package layout

import "time"

// DefaultMinEventHeight guarantees that very short events remain visible
// (and clickable) in the grid.
const DefaultMinEventHeight = 20.0

// Scale carries the vertical scale of a rendered day column.
type Scale struct {
	// DayStart anchors the top of the grid (typically local midnight, or
	// the configured day-start hour).
	DayStart time.Time

	// PixelsPerMinute converts event duration into pixel height.
	PixelsPerMinute float64

	// MinEventHeight is the height floor in pixels. If zero,
	// DefaultMinEventHeight is used.
	MinEventHeight float64
}

// Geometry is the vertical pixel placement of one event.
type Geometry struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Style is the full CSS-ready placement: vertical pixels plus horizontal
// percentages derived from the column assignment.
type Style struct {
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
}

// Project maps an event's interval onto vertical pixel coordinates.
// Events starting before DayStart are clamped to the top of the grid.
func (s Scale) Project(ev LayoutedEvent) Geometry {
	minHeight := s.MinEventHeight
	if minHeight <= 0 {
		minHeight = DefaultMinEventHeight
	}

	startMin := ev.Start.Sub(s.DayStart).Minutes()
	endMin := ev.End.Sub(s.DayStart).Minutes()

	top := startMin * s.PixelsPerMinute
	if top < 0 {
		top = 0
	}
	height := (endMin - startMin) * s.PixelsPerMinute
	if height < minHeight {
		height = minHeight
	}

	return Geometry{Top: top, Height: height}
}

// Style maps an event onto its complete render placement. Width splits the
// cluster's lane evenly among its columns; left offsets by column index.
func (s Scale) Style(ev LayoutedEvent) Style {
	g := s.Project(ev)
	return Style{
		Top:          g.Top,
		Height:       g.Height,
		LeftPercent:  float64(ev.ColumnIndex) / float64(ev.TotalColumns) * 100,
		WidthPercent: 100 / float64(ev.TotalColumns),
	}
}
