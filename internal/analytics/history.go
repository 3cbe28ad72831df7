package analytics

import (
	"cmp"
	"slices"
	"strings"

	"purchaseflow/internal/core"
)

// SortKey selects the ordering of the history view.
type SortKey string

const (
	SortDateDesc  SortKey = "date-desc"
	SortDateAsc   SortKey = "date-asc"
	SortPriceDesc SortKey = "price-desc"
	SortPriceAsc  SortKey = "price-asc"
	// SortNone keeps the collection order.
	SortNone SortKey = ""
)

// ParseSortKey maps a user-supplied key to a SortKey. An empty key selects
// the default date-desc order; the dashboard's "prix-*" spellings are
// accepted; anything else keeps the collection order.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "date-desc":
		return SortDateDesc
	case "date-asc":
		return SortDateAsc
	case "price-desc", "prix-desc":
		return SortPriceDesc
	case "price-asc", "prix-asc":
		return SortPriceAsc
	default:
		return SortNone
	}
}

type HistoryQuery struct {
	Search string
	Sort   SortKey
}

// HistoryView is the filtered and sorted purchase table.
type HistoryView struct {
	Rows  []Row
	Count int
	Total core.Money
}

// History filters purchases whose resolved name contains the search text
// (case-insensitive), sorts them stably by q.Sort and numbers the rows from 1.
func History(purchases []core.Purchase, products []core.Product, q HistoryQuery) HistoryView {
	search := strings.TrimSpace(q.Search)
	rows := resolve(purchases, products)
	if search != "" {
		rows = slices.DeleteFunc(rows, func(r Row) bool {
			return !containsFold(r.Name, search)
		})
	}

	if cmpFn := rowComparator(q.Sort); cmpFn != nil {
		slices.SortStableFunc(rows, cmpFn)
	}

	var total int64
	for _, r := range rows {
		total += r.Purchase.Price.Cents
	}
	return HistoryView{
		Rows:  reindex(rows),
		Count: len(rows),
		Total: core.Money{Cents: total},
	}
}

func rowComparator(key SortKey) func(a, b Row) int {
	switch key {
	case SortDateDesc:
		return func(a, b Row) int { return b.Purchase.Date.Compare(a.Purchase.Date) }
	case SortDateAsc:
		return func(a, b Row) int { return a.Purchase.Date.Compare(b.Purchase.Date) }
	case SortPriceDesc:
		return func(a, b Row) int { return cmp.Compare(b.Purchase.Price.Cents, a.Purchase.Price.Cents) }
	case SortPriceAsc:
		return func(a, b Row) int { return cmp.Compare(a.Purchase.Price.Cents, b.Purchase.Price.Cents) }
	default:
		return nil
	}
}

// DateRange is an inclusive [Start, End] period. A zero bound means the
// range is open and selects everything.
type DateRange struct {
	Start core.Date
	End   core.Date
}

// ParseDateRange builds a range from ISO strings; empty strings leave the
// corresponding bound unset.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if strings.TrimSpace(start) != "" {
		if r.Start, err = core.ParseDate(start); err != nil {
			return DateRange{}, err
		}
	}
	if strings.TrimSpace(end) != "" {
		if r.End, err = core.ParseDate(end); err != nil {
			return DateRange{}, err
		}
	}
	return r, nil
}

// Bounded reports whether both bounds are set.
func (r DateRange) Bounded() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Contains compares ISO date strings, start <= d <= end.
func (r DateRange) Contains(d core.Date) bool {
	iso := d.ISO()
	return r.Start.ISO() <= iso && iso <= r.End.ISO()
}

// FilterRange returns the purchases dated within r. When either bound is
// missing the full collection is returned.
func FilterRange(purchases []core.Purchase, r DateRange) []core.Purchase {
	if !r.Bounded() {
		return slices.Clone(purchases)
	}
	out := make([]core.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if r.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out
}
