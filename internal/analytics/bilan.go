package analytics

import (
	"cmp"
	"math"
	"slices"

	"purchaseflow/internal/core"
)

// Bilan is the financial summary of a period.
type Bilan struct {
	Total   core.Money
	Count   int
	Average core.Money
	Max     core.Money
	Min     core.Money
	// BarPct fills the period gauge: min(100, total/(max*count)*100).
	// It is a display heuristic and must not be "corrected".
	BarPct float64
}

// ComputeBilan summarizes purchases. Every field is 0 for an empty set.
func ComputeBilan(purchases []core.Purchase) Bilan {
	if len(purchases) == 0 {
		return Bilan{}
	}
	total := sumCents(purchases)
	maxC, minC := purchases[0].Price.Cents, purchases[0].Price.Cents
	for _, p := range purchases[1:] {
		maxC = max(maxC, p.Price.Cents)
		minC = min(minC, p.Price.Cents)
	}
	return NewBilan(core.Money{Cents: total}, core.Money{Cents: average(total, len(purchases))},
		core.Money{Cents: maxC}, core.Money{Cents: minC}, len(purchases))
}

// NewBilan assembles a summary computed elsewhere, such as by the API,
// and derives its gauge.
func NewBilan(total, avg, maxPrice, minPrice core.Money, count int) Bilan {
	return Bilan{
		Total:   total,
		Count:   count,
		Average: avg,
		Max:     maxPrice,
		Min:     minPrice,
		BarPct:  barPct(total.Amount(), maxPrice.Amount(), count),
	}
}

func barPct(total, maxPrice float64, count int) float64 {
	denom := maxPrice * float64(count)
	if total <= 0 || denom <= 0 {
		return 0
	}
	return math.Min(100, total/denom*100)
}

// ProductTotal is the amount spent on one product.
type ProductTotal struct {
	Name  string
	Total core.Money
}

// ProductTotals sums prices per resolved product name, largest first.
// Equal totals keep first-seen order.
func ProductTotals(purchases []core.Purchase, products []core.Product) []ProductTotal {
	index := make(map[string]int)
	var totals []ProductTotal
	for _, p := range purchases {
		name := p.ResolvedName(products)
		i, ok := index[name]
		if !ok {
			i = len(totals)
			index[name] = i
			totals = append(totals, ProductTotal{Name: name})
		}
		totals[i].Total.Cents += p.Price.Cents
	}
	slices.SortStableFunc(totals, func(a, b ProductTotal) int {
		return cmp.Compare(b.Total.Cents, a.Total.Cents)
	})
	return totals
}
