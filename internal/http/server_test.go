package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/core"
	"purchaseflow/internal/log"
	"purchaseflow/internal/middleware/security"
	"purchaseflow/internal/remote"
	"purchaseflow/internal/storage"
	"purchaseflow/internal/store"
)

// fakeRemote is an in-memory purchases API.
type fakeRemote struct {
	mu           sync.Mutex
	products     []core.Product
	purchases    []core.Purchase
	nextID       int
	failCreate   bool
	deleteStatus int
}

func (f *fakeRemote) id() core.ID {
	f.nextID++
	return core.ID(strconv.Itoa(100 + f.nextID))
}

func (f *fakeRemote) ListPurchases(context.Context) ([]core.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.purchases), nil
}

func (f *fakeRemote) ListProducts(context.Context) ([]core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.products), nil
}

func (f *fakeRemote) CreateProduct(_ context.Context, name string) (core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := core.Product{ID: f.id(), Name: name}
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeRemote) CreatePurchase(_ context.Context, productID core.ID, price core.Money, date core.Date) (core.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return core.Purchase{}, &core.TransportError{Op: "create purchase", Method: http.MethodPost, Status: http.StatusInternalServerError}
	}
	p := core.Purchase{ID: f.id(), ProductID: productID, Price: price, Date: date}
	f.purchases = append(f.purchases, p)
	return p, nil
}

func (f *fakeRemote) DeletePurchase(_ context.Context, id core.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteStatus != 0 {
		return &core.TransportError{Op: "delete purchase", Method: http.MethodDelete, Status: f.deleteStatus}
	}
	f.purchases = slices.DeleteFunc(f.purchases, func(p core.Purchase) bool { return p.ID == id })
	return nil
}

type fakeReports struct {
	top   remote.TopProductReport
	bilan remote.BilanReport
	err   error
}

func (f fakeReports) TopProduct(context.Context, analytics.DateRange) (remote.TopProductReport, error) {
	return f.top, f.err
}

func (f fakeReports) Bilan(context.Context, analytics.DateRange) (remote.BilanReport, error) {
	return f.bilan, f.err
}

func seed() store.Snapshot {
	return store.Snapshot{
		Products: []core.Product{{ID: "1", Name: "Riz"}, {ID: "2", Name: "Pain"}},
		Purchases: []core.Purchase{
			{ID: "10", ProductID: "1", Price: core.Money{Cents: 2500}, Date: core.MustDate("2024-03-01")},
			{ID: "11", ProductID: "2", Price: core.Money{Cents: 150}, Date: core.MustDate("2024-03-05")},
			{ID: "12", ProductID: "1", Price: core.Money{Cents: 2350}, Date: core.MustDate("2024-04-02")},
		},
		Mode: store.ModeFallback,
	}
}

func newFallbackServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	st := store.New(nil, storage.NewLocalState(storage.NewMemoryKV()),
		store.WithLogger(log.NewNop()), store.WithInitialState(seed()))
	return newTestServer(t, st, opts...), st
}

func newRemoteServer(t *testing.T, rem *fakeRemote, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	snap := seed()
	rem.products = snap.Products
	rem.purchases = snap.Purchases
	st := store.New(rem, storage.NewLocalState(storage.NewMemoryKV()), store.WithLogger(log.NewNop()))
	if got := st.FetchAll(context.Background()); got.Mode != store.ModeRemote {
		t.Fatalf("fetch mode = %v", got.Mode)
	}
	return newTestServer(t, st, opts...), st
}

func newTestServer(t *testing.T, st PurchaseStore, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(":0", st, append([]Option{WithLogger(log.NewNop())}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

const formType = "application/x-www-form-urlencoded"

func TestHealthAndReady(t *testing.T) {
	srv, _ := newFallbackServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}

	rr = do(t, srv, http.MethodGet, "/readyz", "", "")
	if got := decode[map[string]string](t, rr); got["mode"] != "fallback" {
		t.Fatalf("readyz = %v", got)
	}
}

func TestDashboard(t *testing.T) {
	srv, _ := newFallbackServer(t)

	rr := do(t, srv, http.MethodGet, "/api/dashboard?n=2", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[DashboardView](t, rr)
	if got.Mode != store.ModeFallback || got.Products != 2 || got.Currency != "FCFA" {
		t.Fatalf("dashboard = %+v", got)
	}
	if got.KPI.Total.Cents != 5000 || got.KPI.Count != 3 || got.KPI.Average.Cents != 1667 {
		t.Fatalf("kpi = %+v", got.KPI)
	}
	if len(got.Recent) != 2 || got.Recent[0].ID != "12" || got.Recent[0].Product != "Riz" {
		t.Fatalf("recent = %+v", got.Recent)
	}
	if got.Recent[1].Price.Formatted != "1,50 FCFA" || got.Recent[1].DateFormatted != "05/03/2024" {
		t.Fatalf("recent[1] = %+v", got.Recent[1])
	}
}

func TestHistory(t *testing.T) {
	srv, _ := newFallbackServer(t)

	rr := do(t, srv, http.MethodGet, "/api/history?q=RIZ&sort=price-asc", "", "")
	got := decode[HistoryView](t, rr)
	if got.Count != 2 || got.Total.Cents != 4850 || got.Sort != analytics.SortPriceAsc {
		t.Fatalf("history = %+v", got)
	}
	if got.Rows[0].ID != "12" || got.Rows[0].Index != 1 || got.Rows[1].ID != "10" {
		t.Fatalf("rows = %+v", got.Rows)
	}
}

func TestTopLocal(t *testing.T) {
	srv, _ := newFallbackServer(t)

	got := decode[TopView](t, do(t, srv, http.MethodGet, "/api/top", "", ""))
	if got.Source != sourceLocal || got.Outcome != analytics.SingleLeader || got.Title != "Riz" || got.Count != 2 {
		t.Fatalf("top = %+v", got)
	}

	got = decode[TopView](t, do(t, srv, http.MethodGet, "/api/top?start=2024-03-01&end=2024-03-31", "", ""))
	if got.Outcome != analytics.Tie || got.Title != "Riz = Pain" || len(got.Ranking) != 2 {
		t.Fatalf("march top = %+v", got)
	}

	got = decode[TopView](t, do(t, srv, http.MethodGet, "/api/top?start=2025-01-01&end=2025-01-31", "", ""))
	if got.Outcome != analytics.NoData || got.Caption != "Aucun achat sur cette période" || len(got.Leaders) != 0 {
		t.Fatalf("empty top = %+v", got)
	}

	if rr := do(t, srv, http.MethodGet, "/api/top?start=01/03/2024", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad range status = %d", rr.Code)
	}
}

func TestTopAndBilanFromServer(t *testing.T) {
	reports := fakeReports{
		top: remote.TopProductReport{Tie: true, Products: []string{"Riz", "Pain"}, Count: 1,
			Ranking: []remote.RankEntry{{Product: "Riz", Count: 1}, {Product: "Pain", Count: 1}}},
		bilan: remote.BilanReport{Total: core.Money{Cents: 3000}, Count: 3, Average: core.Money{Cents: 1000},
			Max: core.Money{Cents: 1500}, Min: core.Money{Cents: 500}},
	}
	srv, _ := newRemoteServer(t, &fakeRemote{}, WithReports(reports))

	top := decode[TopView](t, do(t, srv, http.MethodGet, "/api/top?start=2024-03-01&end=2024-03-31", "", ""))
	if top.Source != sourceServer || top.Outcome != analytics.Tie || top.Caption != "Égalité à 1 achat(s)" {
		t.Fatalf("top = %+v", top)
	}

	b := decode[BilanView](t, do(t, srv, http.MethodGet, "/api/bilan", "", ""))
	if b.Source != sourceServer || b.Total.Cents != 3000 || b.Max.Cents != 1500 || b.BarPct < 66.6 || b.BarPct > 66.7 {
		t.Fatalf("bilan = %+v", b)
	}
}

func TestReportsFallBackToLocal(t *testing.T) {
	reports := fakeReports{err: &core.TransportError{Op: "bilan", Status: http.StatusBadGateway}}
	srv, _ := newRemoteServer(t, &fakeRemote{}, WithReports(reports))

	b := decode[BilanView](t, do(t, srv, http.MethodGet, "/api/bilan?start=2024-03-01&end=2024-03-31", "", ""))
	if b.Source != sourceLocal || b.Count != 2 || b.Total.Cents != 2650 || b.Min.Cents != 150 {
		t.Fatalf("bilan = %+v", b)
	}
	top := decode[TopView](t, do(t, srv, http.MethodGet, "/api/top", "", ""))
	if top.Source != sourceLocal || top.Title != "Riz" {
		t.Fatalf("top = %+v", top)
	}
}

func TestReportsIgnoredInFallbackMode(t *testing.T) {
	reports := fakeReports{bilan: remote.BilanReport{Total: core.Money{Cents: 1}}}
	srv, _ := newFallbackServer(t, WithReports(reports))

	b := decode[BilanView](t, do(t, srv, http.MethodGet, "/api/bilan", "", ""))
	if b.Source != sourceLocal || b.Total.Cents != 5000 {
		t.Fatalf("bilan = %+v", b)
	}
}

func TestChart(t *testing.T) {
	srv, _ := newFallbackServer(t)

	c := decode[ChartView](t, do(t, srv, http.MethodGet, "/api/chart?dpr=2", "", ""))
	if c.NoData || c.BackingSize != 520 || c.LogicalSize != 260 || len(c.Segments) != 2 {
		t.Fatalf("chart = %+v", c)
	}
	if c.Segments[0].Label != "Riz" || math.Abs(c.Segments[0].StartDeg+90) > 1e-9 {
		t.Fatalf("first segment = %+v", c.Segments[0])
	}
	if c.Total.Cents != 5000 || c.Value.Text != c.Total.Formatted || c.Legend[1].Value.Cents != 150 {
		t.Fatalf("chart totals = %+v %+v %+v", c.Total, c.Value, c.Legend)
	}

	if rr := do(t, srv, http.MethodGet, "/api/chart?dpr=abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad dpr status = %d", rr.Code)
	}

	empty := newTestServer(t, store.New(nil, storage.NewLocalState(storage.NewMemoryKV()), store.WithLogger(log.NewNop())))
	c = decode[ChartView](t, do(t, empty, http.MethodGet, "/api/chart", "", ""))
	if !c.NoData || len(c.Segments) != 0 || c.BackingSize != 260 {
		t.Fatalf("empty chart = %+v", c)
	}
}

func TestCreatePurchaseFallbackForm(t *testing.T) {
	srv, st := newFallbackServer(t)

	rr := do(t, srv, http.MethodPost, "/api/purchases", formType, "nom_produit=++huile++&prix=1200,5&date_achat=2024-05-01")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	got := decode[CreatedView](t, rr)
	if got.Mode != store.ModeFallback || !strings.HasPrefix(string(got.Purchase.ID), store.LocalIDPrefix) {
		t.Fatalf("created = %+v", got)
	}
	if got.Purchase.Product != "huile" || got.Purchase.Price.Cents != 120050 || got.Purchase.Date != "2024-05-01" {
		t.Fatalf("purchase = %+v", got.Purchase)
	}
	if snap := st.Snapshot(); len(snap.Purchases) != 4 || len(snap.Products) != 3 {
		t.Fatalf("snapshot has %d purchases, %d products", len(snap.Purchases), len(snap.Products))
	}
}

func TestCreatePurchaseValidation(t *testing.T) {
	srv, st := newFallbackServer(t)

	rr := do(t, srv, http.MethodPost, "/api/purchases", "application/json", `{"nom_produit":"","prix":"-3","date_achat":"2024-13-01"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode[ErrorBody](t, rr)
	if len(body.Fields) != 3 {
		t.Fatalf("fields = %+v", body.Fields)
	}
	if len(st.Snapshot().Purchases) != 3 {
		t.Fatal("invalid purchase must not be stored")
	}

	if rr := do(t, srv, http.MethodPost, "/api/purchases", "application/json", `{"nom_produit":`); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON status = %d", rr.Code)
	}
}

func TestCreatePurchaseRemote(t *testing.T) {
	rem := &fakeRemote{}
	srv, st := newRemoteServer(t, rem)

	rr := do(t, srv, http.MethodPost, "/api/purchases", "application/json", `{"nom_produit":"riz","prix":12.5,"date_achat":"2024-05-02"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	got := decode[CreatedView](t, rr)
	if got.Mode != store.ModeRemote || got.Purchase.ProductID != "1" || got.Purchase.Product != "Riz" || got.Purchase.Price.Cents != 1250 {
		t.Fatalf("created = %+v", got)
	}
	if len(rem.products) != 2 {
		t.Fatal("existing product should be reused")
	}
	if len(st.Snapshot().Purchases) != 4 {
		t.Fatal("store should be refreshed from the API")
	}
}

func TestCreatePurchaseTransportFailure(t *testing.T) {
	rem := &fakeRemote{failCreate: true}
	srv, st := newRemoteServer(t, rem)

	rr := do(t, srv, http.MethodPost, "/api/purchases", formType, "nom_produit=Riz&prix=10&date_achat=2024-05-02")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(decode[ErrorBody](t, rr).Error, "HTTP 500") {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if len(st.Snapshot().Purchases) != 3 {
		t.Fatal("purchases must be unchanged after a transport failure")
	}
}

func TestDeletePurchase(t *testing.T) {
	srv, st := newFallbackServer(t)

	rr := do(t, srv, http.MethodDelete, "/api/purchases/11", "", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(st.Snapshot().Purchases) != 2 {
		t.Fatal("purchase not removed")
	}

	if rr := do(t, srv, http.MethodDelete, "/api/purchases/unknown", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("unknown id in fallback mode status = %d", rr.Code)
	}
}

func TestDeletePurchaseRemoteErrors(t *testing.T) {
	tests := []struct {
		status int
		want   int
	}{
		{http.StatusNotFound, http.StatusNotFound},
		{http.StatusInternalServerError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			srv, st := newRemoteServer(t, &fakeRemote{deleteStatus: tt.status})
			if rr := do(t, srv, http.MethodDelete, "/api/purchases/10", "", ""); rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if len(st.Snapshot().Purchases) != 3 {
				t.Fatal("purchase must stay when the API refuses the delete")
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	rem := &fakeRemote{}
	srv, _ := newRemoteServer(t, rem)
	rem.purchases = nil

	got := decode[SnapshotView](t, do(t, srv, http.MethodPost, "/api/refresh", "", ""))
	if got.Mode != store.ModeRemote || got.Purchases != 0 || got.Products != 2 {
		t.Fatalf("refresh = %+v", got)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, _ := newFallbackServer(t, WithRateLimit(1))

	if rr := do(t, srv, http.MethodPost, "/api/refresh", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("first status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/refresh", "", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/dashboard", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, status = %d", rr.Code)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _ := newFallbackServer(t)

	if rr := do(t, srv, http.MethodGet, "/api/nope", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/purchases/1", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestWriteStoreErrorInternal(t *testing.T) {
	srv, _ := newFallbackServer(t)
	rr := httptest.NewRecorder()
	srv.writeStoreError(rr, httptest.NewRequest(http.MethodPost, "/", nil), errors.New("disk full"))
	if rr.Code != http.StatusInternalServerError || decode[ErrorBody](t, rr).Error != "internal error" {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
}

type invalidatingReports struct {
	fakeReports
	invalidated int
}

func (r *invalidatingReports) Invalidate() { r.invalidated++ }

func TestWritesInvalidateCachedReports(t *testing.T) {
	reports := &invalidatingReports{}
	srv, _ := newFallbackServer(t, WithReports(reports))

	if rr := do(t, srv, http.MethodPost, "/api/purchases", formType, "nom_produit=Riz&prix=10&date_achat=2024-05-02"); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/purchases/10", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if reports.invalidated != 2 {
		t.Fatalf("invalidated = %d, want 2", reports.invalidated)
	}

	// Rejected input leaves the cache alone.
	do(t, srv, http.MethodPost, "/api/purchases", formType, "nom_produit=&prix=10&date_achat=2024-05-02")
	if reports.invalidated != 2 {
		t.Fatalf("invalidated after rejection = %d", reports.invalidated)
	}
}

func newManyProductsServer(t *testing.T, reports Reports) *Server {
	t.Helper()
	names := []string{"Riz", "Pain", "Huile", "Sucre", "Lait", "Sel", "Thé"}
	rem := &fakeRemote{}
	for i, name := range names {
		id := core.ID(strconv.Itoa(i + 1))
		rem.products = append(rem.products, core.Product{ID: id, Name: name})
		rem.purchases = append(rem.purchases, core.Purchase{ID: core.ID(strconv.Itoa(100 + i)), ProductID: id,
			Price: core.Money{Cents: 100}, Date: core.MustDate("2024-03-02")})
	}
	rem.purchases = append(rem.purchases, core.Purchase{ID: "200", ProductID: "1",
		Price: core.Money{Cents: 100}, Date: core.MustDate("2024-03-03")})

	st := store.New(rem, storage.NewLocalState(storage.NewMemoryKV()), store.WithLogger(log.NewNop()))
	if got := st.FetchAll(context.Background()); got.Mode != store.ModeRemote {
		t.Fatalf("fetch mode = %v", got.Mode)
	}
	return newTestServer(t, st, WithReports(reports))
}

func TestTopRanksEveryProductInRemoteMode(t *testing.T) {
	// The API truncates its ranking to five entries.
	reports := fakeReports{top: remote.TopProductReport{Product: "Riz", Count: 2, Ranking: []remote.RankEntry{
		{Product: "Riz", Count: 2}, {Product: "Pain", Count: 1}, {Product: "Huile", Count: 1},
		{Product: "Sucre", Count: 1}, {Product: "Lait", Count: 1},
	}}}
	srv := newManyProductsServer(t, reports)

	top := decode[TopView](t, do(t, srv, http.MethodGet, "/api/top", "", ""))
	if top.Source != sourceServer || top.Outcome != analytics.SingleLeader || top.Title != "Riz" {
		t.Fatalf("top = %+v", top)
	}
	if len(top.Ranking) != 7 || len(top.Top) != analytics.TopSize {
		t.Fatalf("ranking = %d entries, top = %d", len(top.Ranking), len(top.Top))
	}
	sum := 0
	for _, r := range top.Ranking {
		sum += r.Count
	}
	if sum != 8 {
		t.Fatalf("ranking counts sum to %d, want 8", sum)
	}
}

func TestTopKeepsLocalRankingWhenReportDisagrees(t *testing.T) {
	reports := fakeReports{top: remote.TopProductReport{Product: "Pain", Count: 3}}
	srv := newManyProductsServer(t, reports)

	top := decode[TopView](t, do(t, srv, http.MethodGet, "/api/top", "", ""))
	if top.Source != sourceLocal || top.Title != "Riz" || top.Count != 2 || len(top.Ranking) != 7 {
		t.Fatalf("top = %+v", top)
	}
}

func TestHalfOpenRangeMatchesAcrossModes(t *testing.T) {
	local, _ := newFallbackServer(t)
	remoteSrv, _ := newRemoteServer(t, &fakeRemote{}, WithReports(fakeReports{err: errors.New("down")}))

	for _, target := range []string{"/api/bilan?start=2024-04-01", "/api/top?end=2024-03-01"} {
		a := do(t, local, http.MethodGet, target, "", "").Body.String()
		b := do(t, remoteSrv, http.MethodGet, target, "", "").Body.String()
		if a != b {
			t.Fatalf("%s differs:\nfallback %s\nremote   %s", target, a, b)
		}
	}
	b := decode[BilanView](t, do(t, local, http.MethodGet, "/api/bilan?start=2024-04-01", "", ""))
	if b.Count != 3 {
		t.Fatalf("half-open range should cover every purchase, count = %d", b.Count)
	}
}

func TestRateLimitKeysOnForwardedClientBehindTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	srv, _ := newFallbackServer(t, WithRateLimit(1), WithIPExtractor(security.MustNewIPExtractor("192.0.2.0/24")))

	refresh := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.Header.Set("X-Forwarded-For", client)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	if code := refresh("203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first client status = %d", code)
	}
	if code := refresh("203.0.113.8"); code != http.StatusOK {
		t.Fatalf("second client status = %d", code)
	}
	if code := refresh("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat client status = %d", code)
	}
}
