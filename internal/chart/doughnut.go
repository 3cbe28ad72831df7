// Package chart lays out the spending breakdown as a ring (doughnut) chart.
// It only computes geometry; drawing is left to whatever renders it.
package chart

import (
	"math"

	"purchaseflow/internal/analytics"
)

// Palette is assigned to segments by rank, cycling when exhausted.
var Palette = []string{
	"#e8c87a", "#5ecfb8", "#e8807a", "#7aade8", "#c49a6c",
	"#9b8ec4", "#6ecf6e", "#e8c45a", "#7ac8e8", "#d46ea0",
}

const (
	// LegendSize is the number of entries listed next to the chart.
	LegendSize = 6

	// startAngle is 12 o'clock; angles grow clockwise on screen.
	startAngle = -math.Pi / 2
	fullTurn   = 2 * math.Pi
)

// Layout describes the logical canvas. Size is in CSS pixels; the
// backing store is Size*DPR device pixels.
type Layout struct {
	Size       float64
	OuterRatio float64
	InnerRatio float64
	DPR        float64
}

// DefaultLayout is the dashboard's 260px ring.
func DefaultLayout(dpr float64) Layout {
	return Layout{Size: 260, OuterRatio: 0.42, InnerRatio: 0.24, DPR: dpr}
}

type Entry struct {
	Label string
	Value float64
}

type Segment struct {
	Label string
	Value float64
	Color string
	// Angles in radians.
	Start float64
	Sweep float64
	Mid   float64
}

// End is the angle where the segment stops.
func (s Segment) End() float64 {
	return s.Start + s.Sweep
}

type LegendItem struct {
	Label string
	Value float64
	Color string
}

// Text is a centred caption, offset vertically from the ring centre.
type Text struct {
	Text    string
	FontPx  float64
	OffsetY float64
}

// Chart is the computed geometry. All lengths are in backing (device)
// pixels; LogicalSize stays fixed whatever the DPR.
type Chart struct {
	NoData      bool
	LogicalSize float64
	BackingSize int
	Scale       float64
	CenterX     float64
	CenterY     float64
	Outer       float64
	Inner       float64
	RingWidth   float64
	Total       float64
	Segments    []Segment
	Legend      []LegendItem
	Title       Text
	Value       Text
}

// EntriesFromTotals converts per-product totals into chart entries,
// keeping their order.
func EntriesFromTotals(totals []analytics.ProductTotal) []Entry {
	entries := make([]Entry, 0, len(totals))
	for _, t := range totals {
		entries = append(entries, Entry{Label: t.Name, Value: t.Total.Amount()})
	}
	return entries
}

// Doughnut computes one arc per entry, sweep = value/total * 2π, starting
// at 12 o'clock. An empty input or a non-positive total yields NoData and
// no segments.
func Doughnut(entries []Entry, layout Layout) Chart {
	layout = normalize(layout)
	scale := layout.DPR
	size := layout.Size * scale

	c := Chart{
		LogicalSize: layout.Size,
		BackingSize: int(math.Round(size)),
		Scale:       scale,
		CenterX:     size / 2,
		CenterY:     size / 2,
		Outer:       size * layout.OuterRatio,
		Inner:       size * layout.InnerRatio,
	}
	c.RingWidth = c.Outer - c.Inner

	var total float64
	for _, e := range entries {
		total += e.Value
	}
	if len(entries) == 0 || total <= 0 {
		c.NoData = true
		return c
	}
	c.Total = total
	c.Title = Text{Text: "Total", FontPx: 14 * scale, OffsetY: -8 * scale}
	c.Value = Text{FontPx: 16 * scale, OffsetY: 12 * scale}

	angle := startAngle
	c.Segments = make([]Segment, 0, len(entries))
	for i, e := range entries {
		sweep := e.Value / total * fullTurn
		color := Palette[i%len(Palette)]
		c.Segments = append(c.Segments, Segment{
			Label: e.Label,
			Value: e.Value,
			Color: color,
			Start: angle,
			Sweep: sweep,
			Mid:   angle + sweep/2,
		})
		if i < LegendSize {
			c.Legend = append(c.Legend, LegendItem{Label: e.Label, Value: e.Value, Color: color})
		}
		angle += sweep
	}
	return c
}

func normalize(l Layout) Layout {
	def := DefaultLayout(1)
	if l.Size <= 0 {
		l.Size = def.Size
	}
	if l.OuterRatio <= 0 {
		l.OuterRatio = def.OuterRatio
	}
	if l.InnerRatio <= 0 || l.InnerRatio >= l.OuterRatio {
		l.InnerRatio = l.OuterRatio * def.InnerRatio / def.OuterRatio
	}
	if l.DPR <= 0 || math.IsNaN(l.DPR) || math.IsInf(l.DPR, 0) {
		l.DPR = 1
	}
	return l
}

// Degrees converts a radian angle for renderers working in degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
