package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"purchaseflow/internal/core"
	"purchaseflow/internal/log"
	"purchaseflow/internal/storage"
)

// fakeRemote is an in-memory purchases API. Setting one of the fail
// fields makes the matching call return a TransportError.
type fakeRemote struct {
	mu        sync.Mutex
	products  []core.Product
	purchases []core.Purchase
	nextID    int

	failList           bool
	failCreateProduct  bool
	failCreatePurchase bool
	failDelete         bool

	productPosts int
}

func (f *fakeRemote) transportErr(op string, status int) error {
	return &core.TransportError{Op: op, Method: "POST", URL: "http://api.test/", Status: status}
}

func (f *fakeRemote) id() core.ID {
	f.nextID++
	return core.ID(fmt.Sprint(f.nextID))
}

func (f *fakeRemote) ListPurchases(ctx context.Context) ([]core.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, f.transportErr("list purchases", 0)
	}
	return append([]core.Purchase(nil), f.purchases...), nil
}

func (f *fakeRemote) ListProducts(ctx context.Context) ([]core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, f.transportErr("list products", 0)
	}
	return append([]core.Product(nil), f.products...), nil
}

func (f *fakeRemote) CreateProduct(ctx context.Context, name string) (core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productPosts++
	if f.failCreateProduct {
		return core.Product{}, f.transportErr("create product", 500)
	}
	p := core.Product{ID: f.id(), Name: name}
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeRemote) CreatePurchase(ctx context.Context, productID core.ID, price core.Money, date core.Date) (core.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreatePurchase {
		return core.Purchase{}, f.transportErr("create purchase", 400)
	}
	var name string
	for _, p := range f.products {
		if p.ID == productID {
			name = p.Name
		}
	}
	p := core.Purchase{ID: f.id(), ProductID: productID, ProductName: name, Price: price, Date: date}
	f.purchases = append(f.purchases, p)
	return p, nil
}

func (f *fakeRemote) DeletePurchase(ctx context.Context, id core.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return f.transportErr("delete purchase", 500)
	}
	for i, p := range f.purchases {
		if p.ID == id {
			f.purchases = append(f.purchases[:i], f.purchases[i+1:]...)
			return nil
		}
	}
	return f.transportErr("delete purchase", 404)
}

type recordingPublisher struct {
	events []core.PurchaseEvent
	err    error
}

func (p *recordingPublisher) PublishPurchaseEvent(ctx context.Context, ev core.PurchaseEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newPurchase(name string, cents int64, date string) core.NewPurchase {
	return core.NewPurchase{Name: name, Price: core.Money{Cents: cents}, Date: core.MustDate(date)}
}

func newTestStore(remote Remote, kv storage.KV, opts ...Option) *Store {
	opts = append([]Option{WithLogger(log.NewNop())}, opts...)
	return New(remote, storage.NewLocalState(kv), opts...)
}

func TestFetchAllRemote(t *testing.T) {
	remote := &fakeRemote{
		products:  []core.Product{{ID: "1", Name: "Riz"}},
		purchases: []core.Purchase{{ID: "2", ProductID: "1", Price: core.Money{Cents: 500}, Date: core.MustDate("2024-01-01")}},
	}
	s := newTestStore(remote, storage.NewMemoryKV())

	snap := s.FetchAll(context.Background())
	if snap.Mode != ModeRemote || s.Mode() != ModeRemote {
		t.Fatalf("mode = %v", snap.Mode)
	}
	if len(snap.Products) != 1 || len(snap.Purchases) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestFetchAllFallsBackToLocalState(t *testing.T) {
	kv := storage.NewMemoryKV()
	local := storage.NewLocalState(kv)
	saved := []core.Purchase{{ID: "local-1", ProductID: "local-2", ProductName: "Pain", Price: core.Money{Cents: 250}, Date: core.MustDate("2024-03-01")}}
	if err := local.Save(context.Background(), []core.Product{{ID: "local-2", Name: "Pain"}}, saved); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(&fakeRemote{failList: true}, kv, WithInitialState(Snapshot{
		Purchases: []core.Purchase{{ID: "stale"}},
	}))
	snap := s.FetchAll(context.Background())
	if snap.Mode != ModeFallback {
		t.Fatalf("mode = %v", snap.Mode)
	}
	if len(snap.Purchases) != 1 || snap.Purchases[0].ID != "local-1" {
		t.Fatalf("purchases = %+v", snap.Purchases)
	}
}

func TestFetchAllFallbackWithNothingSaved(t *testing.T) {
	s := newTestStore(&fakeRemote{failList: true}, storage.NewMemoryKV())
	snap := s.FetchAll(context.Background())
	if snap.Mode != ModeFallback || snap.Products == nil || snap.Purchases == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Products) != 0 || len(snap.Purchases) != 0 {
		t.Fatalf("expected empty collections, got %+v", snap)
	}
}

func TestFetchAllCorruptLocalStateStartsEmpty(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Set(context.Background(), storage.PurchasesKey, []byte("not json"))
	s := newTestStore(nil, kv)
	snap := s.FetchAll(context.Background())
	if snap.Mode != ModeFallback || len(snap.Purchases) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestFetchAllRecoversRemoteMode(t *testing.T) {
	remote := &fakeRemote{failList: true}
	s := newTestStore(remote, storage.NewMemoryKV())
	if s.FetchAll(context.Background()).Mode != ModeFallback {
		t.Fatal("expected fallback")
	}
	remote.failList = false
	if s.FetchAll(context.Background()).Mode != ModeRemote {
		t.Fatal("expected remote after the API came back")
	}
}

func TestCreatePurchaseRemoteRoundTrip(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStore(remote, storage.NewMemoryKV())
	ctx := context.Background()
	s.FetchAll(ctx)

	created, err := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if !created.ID.IsNumeric() || created.ProductName != "Bread" {
		t.Fatalf("created = %+v", created)
	}

	// Same product, different case: no second POST /products.
	if _, err := s.CreatePurchase(ctx, newPurchase("bread", 300, "2024-03-02")); err != nil {
		t.Fatalf("second CreatePurchase: %v", err)
	}
	if remote.productPosts != 1 {
		t.Fatalf("product created %d times", remote.productPosts)
	}

	snap := s.FetchAll(ctx)
	if len(snap.Purchases) != 2 || len(snap.Products) != 1 {
		t.Fatalf("after refetch = %+v", snap)
	}
	p := snap.Purchases[0]
	if p.ResolvedName(snap.Products) != "Bread" || p.Price.Cents != 250 || p.Date.ISO() != "2024-03-01" {
		t.Fatalf("round trip lost data: %+v", p)
	}
}

func TestCreatePurchaseFallbackRoundTrip(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()
	s := newTestStore(&fakeRemote{failList: true}, kv)
	s.FetchAll(ctx)

	created, err := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if !strings.HasPrefix(created.ID.String(), LocalIDPrefix) || created.ID.IsNumeric() {
		t.Fatalf("fallback id = %q", created.ID)
	}
	if created.ProductName != "Bread" || !strings.HasPrefix(created.ProductID.String(), LocalIDPrefix) {
		t.Fatalf("created = %+v", created)
	}

	// A fresh store over the same KV sees the purchase after reload.
	reloaded := newTestStore(&fakeRemote{failList: true}, kv)
	snap := reloaded.FetchAll(ctx)
	if len(snap.Purchases) != 1 || len(snap.Products) != 1 {
		t.Fatalf("reloaded = %+v", snap)
	}
	got := snap.Purchases[0]
	if got.ID != created.ID || got.ResolvedName(snap.Products) != "Bread" || got.Price.Cents != 250 || got.Date.ISO() != "2024-03-01" {
		t.Fatalf("reloaded purchase = %+v", got)
	}
}

func TestCreatePurchaseFallbackReusesProduct(t *testing.T) {
	ids := 0
	gen := func() core.ID {
		ids++
		return core.ID(fmt.Sprintf("local-%d", ids))
	}
	s := newTestStore(nil, storage.NewMemoryKV(), WithIDGenerator(gen))
	ctx := context.Background()

	a, _ := s.CreatePurchase(ctx, newPurchase("Riz", 100, "2024-01-01"))
	b, _ := s.CreatePurchase(ctx, newPurchase("RIZ", 200, "2024-01-02"))
	if a.ProductID != b.ProductID || a.ProductID != "local-1" {
		t.Fatalf("products = %q, %q", a.ProductID, b.ProductID)
	}
	if a.ID != "local-2" || b.ID != "local-3" {
		t.Fatalf("purchase ids = %q, %q", a.ID, b.ID)
	}
	if n := len(s.Snapshot().Products); n != 1 {
		t.Fatalf("products = %d", n)
	}
}

func TestCreatePurchaseScenarioA(t *testing.T) {
	s := newTestStore(nil, storage.NewMemoryKV())
	if _, err := s.CreatePurchase(context.Background(), newPurchase("Bread", 250, "2024-03-01")); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Purchases) != 1 || snap.Purchases[0].Price.Cents != 250 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCreatePurchaseTransportFailureLeavesPurchasesUnchanged(t *testing.T) {
	remote := &fakeRemote{failCreatePurchase: true}
	s := newTestStore(remote, storage.NewMemoryKV())
	ctx := context.Background()
	s.FetchAll(ctx)

	_, err := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))
	if !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var terr *core.TransportError
	if !errors.As(err, &terr) || terr.Status != 400 {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Purchases) != 0 {
		t.Fatalf("purchases changed: %+v", snap.Purchases)
	}
	// The product was created server-side before the failure.
	if len(snap.Products) != 1 {
		t.Fatalf("products = %+v", snap.Products)
	}
}

func TestCreatePurchaseProductFailure(t *testing.T) {
	s := newTestStore(&fakeRemote{failCreateProduct: true}, storage.NewMemoryKV())
	ctx := context.Background()
	s.FetchAll(ctx)

	if _, err := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01")); !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Products) != 0 || len(snap.Purchases) != 0 {
		t.Fatalf("state changed: %+v", snap)
	}
}

func TestCreatePurchaseRejectsInvalidInput(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStore(remote, storage.NewMemoryKV())
	_, err := s.CreatePurchase(context.Background(), core.NewPurchase{Name: "", Price: core.Money{Cents: 100}, Date: core.MustDate("2024-01-01")})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if remote.productPosts != 0 {
		t.Fatal("invalid input must not reach the API")
	}
}

func TestDeletePurchaseRemote(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStore(remote, storage.NewMemoryKV())
	ctx := context.Background()
	s.FetchAll(ctx)
	created, _ := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))

	if err := s.DeletePurchase(ctx, created.ID); err != nil {
		t.Fatalf("DeletePurchase: %v", err)
	}
	if n := len(s.Snapshot().Purchases); n != 0 {
		t.Fatalf("purchases = %d", n)
	}
	if n := len(remote.purchases); n != 0 {
		t.Fatalf("server purchases = %d", n)
	}
}

func TestDeletePurchaseRemoteFailureKeepsState(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStore(remote, storage.NewMemoryKV())
	ctx := context.Background()
	s.FetchAll(ctx)
	created, _ := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))

	remote.failDelete = true
	if err := s.DeletePurchase(ctx, created.ID); !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := len(s.Snapshot().Purchases); n != 1 {
		t.Fatalf("purchases = %d", n)
	}
}

func TestDeleteMissingPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("fallback is a no-op", func(t *testing.T) {
		s := newTestStore(nil, storage.NewMemoryKV())
		s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))
		if err := s.DeletePurchase(ctx, "does-not-exist"); err != nil {
			t.Fatalf("DeletePurchase: %v", err)
		}
		if n := len(s.Snapshot().Purchases); n != 1 {
			t.Fatalf("purchases = %d", n)
		}
	})

	t.Run("remote surfaces not found", func(t *testing.T) {
		s := newTestStore(&fakeRemote{}, storage.NewMemoryKV())
		s.FetchAll(ctx)
		err := s.DeletePurchase(ctx, "999")
		var terr *core.TransportError
		if !errors.As(err, &terr) || !terr.NotFound() {
			t.Fatalf("expected 404 TransportError, got %v", err)
		}
	})
}

func TestDeletePurchaseFallbackPersists(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()
	s := newTestStore(nil, kv)
	a, _ := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))
	s.CreatePurchase(ctx, newPurchase("Rice", 500, "2024-03-02"))

	if err := s.DeletePurchase(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	_, purchases, err := storage.NewLocalState(kv).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(purchases) != 1 || purchases[0].ProductName != "Rice" {
		t.Fatalf("persisted = %+v", purchases)
	}
}

func TestEventsArePublished(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newTestStore(nil, storage.NewMemoryKV(), WithPublisher(pub))
	ctx := context.Background()

	created, err := s.CreatePurchase(ctx, newPurchase("Bread", 250, "2024-03-01"))
	if err != nil {
		t.Fatalf("publish failure must not fail the operation: %v", err)
	}
	if err := s.DeletePurchase(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 2 {
		t.Fatalf("events = %+v", pub.events)
	}
	if pub.events[0].Type != core.EventPurchaseCreated || pub.events[1].Type != core.EventPurchaseDeleted {
		t.Fatalf("event types = %s, %s", pub.events[0].Type, pub.events[1].Type)
	}
	if pub.events[1].Purchase.ID != created.ID || pub.events[0].Mode != "fallback" {
		t.Fatalf("events = %+v", pub.events)
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	s := newTestStore(nil, storage.NewMemoryKV())
	s.CreatePurchase(context.Background(), newPurchase("Bread", 250, "2024-03-01"))

	snap := s.Snapshot()
	snap.Purchases[0].Price = core.Money{Cents: 1}
	if s.Snapshot().Purchases[0].Price.Cents != 250 {
		t.Fatal("snapshot aliases store state")
	}
}

func TestResetReplacesState(t *testing.T) {
	s := newTestStore(&fakeRemote{}, storage.NewMemoryKV())
	s.Reset(Snapshot{
		Products: []core.Product{{ID: "1", Name: "A"}},
		Mode:     ModeFallback,
	})
	snap := s.Snapshot()
	if snap.Mode != ModeFallback || len(snap.Products) != 1 || snap.Purchases == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestConcurrentCreates(t *testing.T) {
	s := newTestStore(nil, storage.NewMemoryKV())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.CreatePurchase(ctx, newPurchase("Bread", 100, "2024-03-01"))
			s.Snapshot()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if len(snap.Purchases) != 20 || len(snap.Products) != 1 {
		t.Fatalf("purchases = %d, products = %d", len(snap.Purchases), len(snap.Products))
	}
}

func TestModeString(t *testing.T) {
	if ModeRemote.String() != "remote" || ModeFallback.String() != "fallback" {
		t.Fatal("unexpected mode names")
	}
}

func TestModeText(t *testing.T) {
	for _, m := range []Mode{ModeRemote, ModeFallback} {
		text, _ := m.MarshalText()
		var back Mode
		if err := back.UnmarshalText(text); err != nil || back != m {
			t.Fatalf("round trip of %v gave %v, %v", m, back, err)
		}
	}
	var m Mode
	if err := m.UnmarshalText([]byte("offline")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
