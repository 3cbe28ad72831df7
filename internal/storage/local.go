package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"purchaseflow/internal/core"
)

// Keys of the two blobs holding the fallback collections.
const (
	ProductsKey  = "pf_products"
	PurchasesKey = "pf_purchases"
)

// LocalState reads and writes the products and purchases collections as
// JSON lists under ProductsKey and PurchasesKey.
type LocalState struct {
	kv KV
}

func NewLocalState(kv KV) *LocalState {
	return &LocalState{kv: kv}
}

// Load returns both collections. A key that was never written yields an
// empty collection; a blob that is not a JSON list is an error.
func (s *LocalState) Load(ctx context.Context) ([]core.Product, []core.Purchase, error) {
	products := []core.Product{}
	if err := s.read(ctx, ProductsKey, &products); err != nil {
		return nil, nil, err
	}
	purchases := []core.Purchase{}
	if err := s.read(ctx, PurchasesKey, &purchases); err != nil {
		return nil, nil, err
	}
	return products, purchases, nil
}

// Save overwrites both blobs in one write, so a failure leaves the previous
// pair in place.
func (s *LocalState) Save(ctx context.Context, products []core.Product, purchases []core.Purchase) error {
	if products == nil {
		products = []core.Product{}
	}
	if purchases == nil {
		purchases = []core.Purchase{}
	}
	rawProducts, err := encode(ProductsKey, products)
	if err != nil {
		return err
	}
	rawPurchases, err := encode(PurchasesKey, purchases)
	if err != nil {
		return err
	}
	if err := s.kv.SetMany(ctx, map[string][]byte{
		ProductsKey:  rawProducts,
		PurchasesKey: rawPurchases,
	}); err != nil {
		return fmt.Errorf("save local state: %w", err)
	}
	return nil
}

func (s *LocalState) read(ctx context.Context, key string, dst any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func encode(key string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return raw, nil
}
