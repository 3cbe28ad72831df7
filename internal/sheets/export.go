package sheets

import (
	"context"
	"fmt"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/core"
)

// Header is the first row of the export.
var Header = []any{"ID", "Date", "Produit", "Prix"}

// TotalLabel heads the closing row holding the sum of all prices.
const TotalLabel = "Total"

type Result struct {
	Ref   string
	Rows  int // purchase rows, header and total excluded
	Total core.Money
}

// Rows lays out the export: the header, one row per purchase oldest
// first, then the total. Prices are decimal strings so the sheet parses
// them as numbers.
func Rows(products []core.Product, purchases []core.Purchase) [][]any {
	view := analytics.History(purchases, products, analytics.HistoryQuery{Sort: analytics.SortDateAsc})
	out := make([][]any, 0, len(view.Rows)+2)
	out = append(out, Header)
	for _, r := range view.Rows {
		out = append(out, []any{r.Purchase.ID.String(), r.Purchase.Date.ISO(), r.Name, r.Purchase.Price.String()})
	}
	out = append(out, []any{TotalLabel, "", "", view.Total.String()})
	return out
}

// Export writes the full purchase history through w.
func Export(ctx context.Context, w RowWriter, products []core.Product, purchases []core.Purchase) (Result, error) {
	rows := Rows(products, purchases)
	ref, err := w.ReplaceRows(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("export purchases: %w", err)
	}
	var total int64
	for _, p := range purchases {
		total += p.Price.Cents
	}
	return Result{Ref: ref, Rows: len(purchases), Total: core.Money{Cents: total}}, nil
}
