package http

import (
	"math"
	"slices"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/chart"
	"purchaseflow/internal/core"
	"purchaseflow/internal/remote"
	"purchaseflow/internal/store"
)

// Report sources.
const (
	sourceLocal  = "local"
	sourceServer = "server"
)

// MoneyView carries an amount both raw and formatted for display.
type MoneyView struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

type PurchaseView struct {
	Index         int       `json:"index,omitempty"`
	ID            core.ID   `json:"id"`
	ProductID     core.ID   `json:"product_id"`
	Product       string    `json:"product"`
	Price         MoneyView `json:"price"`
	Date          string    `json:"date"`
	DateFormatted string    `json:"date_formatted"`
}

type KPIView struct {
	Total   MoneyView `json:"total"`
	Count   int       `json:"count"`
	Average MoneyView `json:"average"`
}

type DashboardView struct {
	Mode     store.Mode     `json:"mode"`
	Products int            `json:"products"`
	KPI      KPIView        `json:"kpi"`
	Recent   []PurchaseView `json:"recent"`
	Currency string         `json:"currency"`
}

type HistoryView struct {
	Sort  analytics.SortKey `json:"sort"`
	Count int               `json:"count"`
	Total MoneyView         `json:"total"`
	Rows  []PurchaseView    `json:"rows"`
}

type RankView struct {
	Product string `json:"product"`
	Count   int    `json:"count"`
}

type TopView struct {
	Source  string            `json:"source"`
	Outcome analytics.Outcome `json:"outcome"`
	Leaders []string          `json:"leaders"`
	Count   int               `json:"count"`
	Title   string            `json:"title"`
	Caption string            `json:"caption"`
	Top     []RankView        `json:"top"`
	Ranking []RankView        `json:"ranking"`
}

type BilanView struct {
	Source  string    `json:"source"`
	Total   MoneyView `json:"total"`
	Count   int       `json:"count"`
	Average MoneyView `json:"average"`
	Max     MoneyView `json:"max"`
	Min     MoneyView `json:"min"`
	BarPct  float64   `json:"bar_pct"`
}

type SegmentView struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Color    string  `json:"color"`
	Start    float64 `json:"start"`
	Sweep    float64 `json:"sweep"`
	Mid      float64 `json:"mid"`
	StartDeg float64 `json:"start_deg"`
	SweepDeg float64 `json:"sweep_deg"`
}

type LegendView struct {
	Label string    `json:"label"`
	Value MoneyView `json:"value"`
	Color string    `json:"color"`
}

type TextView struct {
	Text    string  `json:"text"`
	FontPx  float64 `json:"font_px"`
	OffsetY float64 `json:"offset_y"`
}

type ChartView struct {
	NoData      bool          `json:"no_data"`
	LogicalSize float64       `json:"logical_size"`
	BackingSize int           `json:"backing_size"`
	Scale       float64       `json:"scale"`
	CenterX     float64       `json:"center_x"`
	CenterY     float64       `json:"center_y"`
	Outer       float64       `json:"outer"`
	Inner       float64       `json:"inner"`
	RingWidth   float64       `json:"ring_width"`
	Total       MoneyView     `json:"total"`
	Segments    []SegmentView `json:"segments"`
	Legend      []LegendView  `json:"legend"`
	Title       TextView      `json:"title"`
	Value       TextView      `json:"value"`
}

type SnapshotView struct {
	Mode      store.Mode `json:"mode"`
	Products  int        `json:"products"`
	Purchases int        `json:"purchases"`
}

type CreatedView struct {
	Mode     store.Mode   `json:"mode"`
	Purchase PurchaseView `json:"purchase"`
}

type presenter struct {
	f *core.Formatter
}

func (p presenter) money(m core.Money) MoneyView {
	return MoneyView{Cents: m.Cents, Formatted: p.f.Money(m)}
}

// amount converts a chart value back to cents for formatting.
func (p presenter) amount(v float64) MoneyView {
	return p.money(core.Money{Cents: int64(math.Round(v * 100))})
}

func (p presenter) row(r analytics.Row) PurchaseView {
	v := p.purchase(r.Purchase, r.Name)
	v.Index = r.Index
	return v
}

func (p presenter) rows(rows []analytics.Row) []PurchaseView {
	out := make([]PurchaseView, 0, len(rows))
	for _, r := range rows {
		out = append(out, p.row(r))
	}
	return out
}

func (p presenter) purchase(pu core.Purchase, name string) PurchaseView {
	return PurchaseView{
		ID:            pu.ID,
		ProductID:     pu.ProductID,
		Product:       name,
		Price:         p.money(pu.Price),
		Date:          pu.Date.ISO(),
		DateFormatted: p.f.Date(pu.Date),
	}
}

func (p presenter) kpi(k analytics.KPI) KPIView {
	return KPIView{Total: p.money(k.Total), Count: k.Count, Average: p.money(k.Average)}
}

func (p presenter) top(source string, r analytics.Ranking) TopView {
	leaders := r.Leaders
	if leaders == nil {
		leaders = []string{}
	}
	return TopView{
		Source:  source,
		Outcome: r.Outcome,
		Leaders: leaders,
		Count:   r.Count,
		Title:   r.Title(),
		Caption: r.Caption(),
		Top:     rankViews(r.Top),
		Ranking: rankViews(r.Ranked),
	}
}

func rankViews(counts []analytics.ProductCount) []RankView {
	out := make([]RankView, 0, len(counts))
	for _, c := range counts {
		out = append(out, RankView{Product: c.Name, Count: c.Count})
	}
	return out
}

func (p presenter) bilan(source string, b analytics.Bilan) BilanView {
	return BilanView{
		Source:  source,
		Total:   p.money(b.Total),
		Count:   b.Count,
		Average: p.money(b.Average),
		Max:     p.money(b.Max),
		Min:     p.money(b.Min),
		BarPct:  b.BarPct,
	}
}

func (p presenter) chart(c chart.Chart) ChartView {
	v := ChartView{
		NoData:      c.NoData,
		LogicalSize: c.LogicalSize,
		BackingSize: c.BackingSize,
		Scale:       c.Scale,
		CenterX:     c.CenterX,
		CenterY:     c.CenterY,
		Outer:       c.Outer,
		Inner:       c.Inner,
		RingWidth:   c.RingWidth,
		Total:       p.amount(c.Total),
		Segments:    make([]SegmentView, 0, len(c.Segments)),
		Legend:      make([]LegendView, 0, len(c.Legend)),
		Title:       TextView(c.Title),
		Value:       TextView(c.Value),
	}
	if !c.NoData {
		v.Value.Text = v.Total.Formatted
	}
	for _, s := range c.Segments {
		v.Segments = append(v.Segments, SegmentView{
			Label:    s.Label,
			Value:    s.Value,
			Color:    s.Color,
			Start:    s.Start,
			Sweep:    s.Sweep,
			Mid:      s.Mid,
			StartDeg: chart.Degrees(s.Start),
			SweepDeg: chart.Degrees(s.Sweep),
		})
	}
	for _, l := range c.Legend {
		v.Legend = append(v.Legend, LegendView{Label: l.Label, Value: p.amount(l.Value), Color: l.Color})
	}
	return v
}

// reportAgrees reports whether the API's top product answer names the
// same leaders with the same count as the ranking of the loaded purchases.
// The API only returns the first five ranks, so the full ranking is always
// computed locally.
func reportAgrees(rep remote.TopProductReport, r analytics.Ranking) bool {
	leaders := rep.Leaders()
	if len(leaders) == 0 {
		return r.Outcome == analytics.NoData
	}
	if rep.Tie != (r.Outcome == analytics.Tie) || rep.Count != r.Count {
		return false
	}
	return slices.Equal(slices.Sorted(slices.Values(leaders)), slices.Sorted(slices.Values(r.Leaders)))
}

func bilanFromReport(rep remote.BilanReport) analytics.Bilan {
	return analytics.NewBilan(rep.Total, rep.Average, rep.Max, rep.Min, rep.Count)
}
