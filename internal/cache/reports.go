package cache

import (
	"context"
	"time"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/remote"
)

// ReportSource computes period reports, usually the purchases API.
type ReportSource interface {
	TopProduct(ctx context.Context, r analytics.DateRange) (remote.TopProductReport, error)
	Bilan(ctx context.Context, r analytics.DateRange) (remote.BilanReport, error)
}

// Reports answers repeated report requests for the same period from memory.
// Errors are never cached. Invalidate must be called whenever the purchase
// collection changes.
type Reports struct {
	src   ReportSource
	top   *LRUCache[remote.TopProductReport]
	bilan *LRUCache[remote.BilanReport]
}

func NewReports(src ReportSource, maxSize int, ttl time.Duration) *Reports {
	return &Reports{
		src:   src,
		top:   NewLRUCache[remote.TopProductReport](maxSize, ttl),
		bilan: NewLRUCache[remote.BilanReport](maxSize, ttl),
	}
}

func (c *Reports) TopProduct(ctx context.Context, r analytics.DateRange) (remote.TopProductReport, error) {
	key := rangeKey(r)
	if rep, ok := c.top.Get(key); ok {
		return rep, nil
	}
	rep, err := c.src.TopProduct(ctx, r)
	if err != nil {
		return rep, err
	}
	c.top.Set(key, rep)
	return rep, nil
}

func (c *Reports) Bilan(ctx context.Context, r analytics.DateRange) (remote.BilanReport, error) {
	key := rangeKey(r)
	if rep, ok := c.bilan.Get(key); ok {
		return rep, nil
	}
	rep, err := c.src.Bilan(ctx, r)
	if err != nil {
		return rep, err
	}
	c.bilan.Set(key, rep)
	return rep, nil
}

// Invalidate drops every cached report.
func (c *Reports) Invalidate() {
	c.top.Clear()
	c.bilan.Clear()
}

func (c *Reports) CleanExpired() int {
	return c.top.CleanExpired() + c.bilan.CleanExpired()
}

// rangeKey maps every half-open range to the whole-collection key.
func rangeKey(r analytics.DateRange) string {
	if !r.Bounded() {
		return ".."
	}
	return r.Start.ISO() + ".." + r.End.ISO()
}
