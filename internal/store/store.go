// Package store holds the in-memory products and purchases collections and
// keeps them in step with the purchases API, or with the local fallback
// when the API cannot be reached.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"purchaseflow/internal/core"
	"purchaseflow/internal/log"
)

// Mode tells where mutations go.
type Mode int

const (
	ModeRemote Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	if m == ModeFallback {
		return "fallback"
	}
	return "remote"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "remote":
		*m = ModeRemote
	case "fallback":
		*m = ModeFallback
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Remote is the purchases API.
type Remote interface {
	ListPurchases(ctx context.Context) ([]core.Purchase, error)
	ListProducts(ctx context.Context) ([]core.Product, error)
	CreateProduct(ctx context.Context, name string) (core.Product, error)
	CreatePurchase(ctx context.Context, productID core.ID, price core.Money, date core.Date) (core.Purchase, error)
	DeletePurchase(ctx context.Context, id core.ID) error
}

// Local persists both collections while in fallback mode.
type Local interface {
	Load(ctx context.Context) ([]core.Product, []core.Purchase, error)
	Save(ctx context.Context, products []core.Product, purchases []core.Purchase) error
}

// Publisher receives purchase events. Failures never fail the operation.
type Publisher interface {
	PublishPurchaseEvent(ctx context.Context, ev core.PurchaseEvent) error
}

// Snapshot is a copy of the store state.
type Snapshot struct {
	Products  []core.Product
	Purchases []core.Purchase
	Mode      Mode
}

type Store struct {
	// opMu serializes operations; mu guards the fields below it so
	// Snapshot does not wait for an in-flight network call.
	opMu sync.Mutex

	mu        sync.RWMutex
	products  []core.Product
	purchases []core.Purchase
	mode      Mode

	remote    Remote
	local     Local
	publisher Publisher
	logger    *log.Logger
	newID     func() core.ID
	now       func() time.Time
}

type Option func(*Store)

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger.WithComponent(log.ComponentStore) }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithInitialState seeds the collections and mode, mainly for tests.
func WithInitialState(snap Snapshot) Option {
	return func(s *Store) { s.set(snap) }
}

// WithIDGenerator replaces the generator of fallback ids.
func WithIDGenerator(gen func() core.ID) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// LocalIDPrefix marks ids synthesized in fallback mode. They are never
// numeric, so they cannot collide with ids issued by the API.
const LocalIDPrefix = "local-"

func newLocalID() core.ID {
	return core.ID(LocalIDPrefix + uuid.NewString())
}

// New creates a store. remote may be nil, in which case the store always
// works in fallback mode.
func New(remote Remote, local Local, opts ...Option) *Store {
	s := &Store{
		products:  []core.Product{},
		purchases: []core.Purchase{},
		remote:    remote,
		local:     local,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentStore),
		newID:     newLocalID,
		now:       time.Now,
	}
	if remote == nil {
		s.mode = ModeFallback
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the current mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Snapshot returns copies of both collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Products:  slices.Clone(s.products),
		Purchases: slices.Clone(s.purchases),
		Mode:      s.mode,
	}
}

// Reset replaces the whole state.
func (s *Store) Reset(snap Snapshot) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.set(snap)
}

func (s *Store) set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = cloneOrEmpty(snap.Products)
	s.purchases = cloneOrEmpty(snap.Purchases)
	s.mode = snap.Mode
}

// FetchAll loads both collections from the API concurrently. If either
// request fails the store switches to fallback mode and loads the local
// copy instead. It never fails; the returned snapshot says which mode won.
func (s *Store) FetchAll(ctx context.Context) Snapshot {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.remote != nil {
		products, purchases, err := s.fetchRemote(ctx)
		if err == nil {
			s.set(Snapshot{Products: products, Purchases: purchases, Mode: ModeRemote})
			s.logger.InfoContext(ctx, "Collections loaded from API",
				log.FieldOperation, log.OpFetch,
				log.FieldProducts, len(products),
				log.FieldPurchases, len(purchases))
			return s.Snapshot()
		}
		s.logger.WarnContext(ctx, "API unavailable, switching to fallback mode",
			log.FieldOperation, log.OpFetch,
			log.FieldError, err)
	}

	products, purchases, err := s.local.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load fallback state, starting empty",
			log.FieldOperation, log.OpFetch,
			log.FieldError, err)
		products, purchases = nil, nil
	}
	s.set(Snapshot{Products: products, Purchases: purchases, Mode: ModeFallback})
	return s.Snapshot()
}

func (s *Store) fetchRemote(ctx context.Context) ([]core.Product, []core.Purchase, error) {
	var (
		products  []core.Product
		purchases []core.Purchase
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		purchases, err = s.remote.ListPurchases(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.remote.ListProducts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, purchases, nil
}

// CreatePurchase finds or creates the product named in np, then records
// the purchase. In remote mode a transport failure leaves the purchases
// collection unchanged.
func (s *Store) CreatePurchase(ctx context.Context, np core.NewPurchase) (core.Purchase, error) {
	if err := np.Validate(); err != nil {
		return core.Purchase{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	var (
		created core.Purchase
		err     error
	)
	mode := s.Mode()
	if mode == ModeFallback {
		created, err = s.createLocal(ctx, np)
	} else {
		created, err = s.createRemote(ctx, np)
	}
	if err != nil {
		return core.Purchase{}, err
	}

	s.logger.InfoContext(ctx, "Purchase created",
		log.FieldOperation, log.OpCreate,
		log.FieldPurchaseID, created.ID,
		log.FieldProductName, np.Name,
		log.FieldAmountCents, created.Price.Cents,
		log.FieldDate, created.Date.ISO(),
		log.FieldMode, mode.String())
	s.publish(ctx, core.EventPurchaseCreated, created, mode)
	return created, nil
}

func (s *Store) createRemote(ctx context.Context, np core.NewPurchase) (core.Purchase, error) {
	s.mu.RLock()
	product, found := core.FindProductByName(s.products, np.Name)
	s.mu.RUnlock()

	if !found {
		var err error
		product, err = s.remote.CreateProduct(ctx, np.Name)
		if err != nil {
			return core.Purchase{}, fmt.Errorf("create product: %w", err)
		}
		// The product exists server-side now, whatever happens next.
		s.mu.Lock()
		s.products = append(s.products, product)
		s.mu.Unlock()
	}

	created, err := s.remote.CreatePurchase(ctx, product.ID, np.Price, np.Date)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("create purchase: %w", err)
	}
	if created.ProductName == "" {
		created.ProductName = product.Name
	}

	s.mu.Lock()
	s.purchases = append(s.purchases, created)
	s.mu.Unlock()
	return created, nil
}

func (s *Store) createLocal(ctx context.Context, np core.NewPurchase) (core.Purchase, error) {
	s.mu.RLock()
	products := slices.Clone(s.products)
	purchases := slices.Clone(s.purchases)
	s.mu.RUnlock()

	product, found := core.FindProductByName(products, np.Name)
	if !found {
		product = core.Product{ID: s.newID(), Name: np.Name}
		products = append(products, product)
	}
	created := core.Purchase{
		ID:          s.newID(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       np.Price,
		Date:        np.Date,
	}
	purchases = append(purchases, created)

	if err := s.local.Save(ctx, products, purchases); err != nil {
		return core.Purchase{}, fmt.Errorf("persist fallback state: %w", err)
	}

	s.mu.Lock()
	s.products = products
	s.purchases = purchases
	s.mu.Unlock()
	return created, nil
}

// DeletePurchase removes the purchase with the given id. In fallback mode
// an unknown id is a no-op; in remote mode the API's answer is returned.
func (s *Store) DeletePurchase(ctx context.Context, id core.ID) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	mode := s.Mode()
	if mode == ModeRemote {
		if err := s.remote.DeletePurchase(ctx, id); err != nil {
			return fmt.Errorf("delete purchase %s: %w", id, err)
		}
	}

	s.mu.RLock()
	idx := slices.IndexFunc(s.purchases, func(p core.Purchase) bool { return p.ID == id })
	products := slices.Clone(s.products)
	purchases := slices.Clone(s.purchases)
	s.mu.RUnlock()

	if idx < 0 {
		if mode == ModeRemote {
			s.logger.WarnContext(ctx, "Deleted purchase was not loaded locally",
				log.FieldOperation, log.OpDelete,
				log.FieldPurchaseID, id)
		}
		return nil
	}
	removed := purchases[idx]
	purchases = slices.Delete(purchases, idx, idx+1)

	if mode == ModeFallback {
		if err := s.local.Save(ctx, products, purchases); err != nil {
			return fmt.Errorf("persist fallback state: %w", err)
		}
	}

	s.mu.Lock()
	s.purchases = purchases
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Purchase deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldPurchaseID, id,
		log.FieldMode, mode.String())
	s.publish(ctx, core.EventPurchaseDeleted, removed, mode)
	return nil
}

func (s *Store) publish(ctx context.Context, typ core.EventType, p core.Purchase, mode Mode) {
	if s.publisher == nil {
		return
	}
	ev := core.PurchaseEvent{Type: typ, Purchase: p, Mode: mode.String(), OccurredAt: s.now().UTC()}
	if err := s.publisher.PublishPurchaseEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish purchase event",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, string(typ),
			log.FieldPurchaseID, p.ID,
			log.FieldError, err)
	}
}

func cloneOrEmpty[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return slices.Clone(s)
}
