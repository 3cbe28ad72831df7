package http

import (
	"net/http"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/chart"
	"purchaseflow/internal/log"
	"purchaseflow/internal/store"
)

// handleDashboard returns the KPI card and the recent purchases.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	n := ParseLimit(r.URL.Query(), "n", analytics.DefaultRecent)

	NewJSONResponse().Body(DashboardView{
		Mode:     snap.Mode,
		Products: len(snap.Products),
		KPI:      s.present.kpi(analytics.Summarize(snap.Purchases)),
		Recent:   s.present.rows(analytics.Recent(snap.Purchases, snap.Products, n)),
		Currency: s.present.f.Currency(),
	}).Write(w)
}

// handleHistory returns the searchable, sortable purchase table.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	q := analytics.HistoryQuery{
		Search: sanitizeInput(r.URL.Query().Get("q")),
		Sort:   analytics.ParseSortKey(r.URL.Query().Get("sort")),
	}
	view := analytics.History(snap.Purchases, snap.Products, q)

	NewJSONResponse().Body(HistoryView{
		Sort:  q.Sort,
		Count: view.Count,
		Total: s.present.money(view.Total),
		Rows:  s.present.rows(view.Rows),
	}).Write(w)
}

// handleTop ranks products over an optional period from the loaded
// collection. In remote mode the API's answer is checked against it and the
// source is "server" when both agree.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period, err := ParseDateRange(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	snap := s.store.Snapshot()
	ranking := analytics.TopProducts(analytics.FilterRange(snap.Purchases, period), snap.Products)
	source := sourceLocal

	if s.reports != nil && snap.Mode == store.ModeRemote {
		rep, err := s.reports.TopProduct(ctx, period)
		switch {
		case err != nil:
			log.FromContext(ctx).WarnContext(ctx, "Top product report unavailable, using local ranking",
				log.FieldError, err)
		case !reportAgrees(rep, ranking):
			log.FromContext(ctx).WarnContext(ctx, "Top product report disagrees with loaded purchases",
				"report_leaders", rep.Leaders(),
				"local_leaders", ranking.Leaders)
		default:
			source = sourceServer
		}
	}

	NewJSONResponse().Body(s.present.top(source, ranking)).Write(w)
}

// handleBilan summarizes an optional period, server-side when possible.
func (s *Server) handleBilan(w http.ResponseWriter, r *http.Request) {
	period, err := ParseDateRange(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if s.reports != nil && s.store.Mode() == store.ModeRemote {
		rep, err := s.reports.Bilan(r.Context(), period)
		if err == nil {
			NewJSONResponse().Body(s.present.bilan(sourceServer, bilanFromReport(rep))).Write(w)
			return
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Bilan report unavailable, computing locally",
			log.FieldError, err)
	}

	snap := s.store.Snapshot()
	b := analytics.ComputeBilan(analytics.FilterRange(snap.Purchases, period))
	NewJSONResponse().Body(s.present.bilan(sourceLocal, b)).Write(w)
}

// handleChart returns the doughnut geometry of spending per product.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	dpr, err := ParseDPR(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	snap := s.store.Snapshot()
	totals := analytics.ProductTotals(snap.Purchases, snap.Products)
	c := chart.Doughnut(chart.EntriesFromTotals(totals), chart.DefaultLayout(dpr))
	NewJSONResponse().Body(s.present.chart(c)).Write(w)
}
