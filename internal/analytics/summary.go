// Package analytics derives the dashboard views from the purchase
// collections. Every function is pure: inputs are never modified and the
// result depends only on the arguments.
package analytics

import (
	"slices"
	"strings"

	"purchaseflow/internal/core"
)

// DefaultRecent is the number of purchases shown in the recent list.
const DefaultRecent = 6

// KPI is the headline summary over all purchases.
type KPI struct {
	Total   core.Money
	Count   int
	Average core.Money
}

// Row is a purchase with its resolved product name and 1-based position.
type Row struct {
	Index    int
	Name     string
	Purchase core.Purchase
}

// Summarize computes total, count and average. The average is 0 for an
// empty set and is rounded half away from zero to the cent otherwise.
func Summarize(purchases []core.Purchase) KPI {
	total := sumCents(purchases)
	return KPI{
		Total:   core.Money{Cents: total},
		Count:   len(purchases),
		Average: core.Money{Cents: average(total, len(purchases))},
	}
}

// Recent returns the n most recent purchases, newest first.
func Recent(purchases []core.Purchase, products []core.Product, n int) []Row {
	if n <= 0 {
		n = DefaultRecent
	}
	rows := resolve(purchases, products)
	slices.SortStableFunc(rows, func(a, b Row) int {
		return b.Purchase.Date.Compare(a.Purchase.Date)
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return reindex(rows)
}

func sumCents(purchases []core.Purchase) int64 {
	var total int64
	for _, p := range purchases {
		total += p.Price.Cents
	}
	return total
}

func average(total int64, n int) int64 {
	if n == 0 {
		return 0
	}
	d := int64(n)
	if total < 0 {
		return -((-total*2 + d) / (2 * d))
	}
	return (total*2 + d) / (2 * d)
}

func resolve(purchases []core.Purchase, products []core.Product) []Row {
	rows := make([]Row, 0, len(purchases))
	for _, p := range purchases {
		rows = append(rows, Row{Name: p.ResolvedName(products), Purchase: p})
	}
	return rows
}

func reindex(rows []Row) []Row {
	for i := range rows {
		rows[i].Index = i + 1
	}
	return rows
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
