package remote

import (
	"context"
	"net/http"
	"net/url"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/core"
)

// TopProductReport is the server-side ranking for a period. When the
// period has no purchase only Message is set.
type TopProductReport struct {
	Tie      bool        `json:"egalite"`
	Product  string      `json:"produit,omitempty"`
	Products []string    `json:"produits,omitempty"`
	Count    int         `json:"nombre"`
	Ranking  []RankEntry `json:"ranking"`
	Message  string      `json:"message,omitempty"`
}

type RankEntry struct {
	Product string `json:"produit"`
	Count   int    `json:"nombre"`
}

// Leaders returns the leading product names whichever field carried them.
func (r TopProductReport) Leaders() []string {
	if r.Tie {
		return r.Products
	}
	if r.Product != "" {
		return []string{r.Product}
	}
	return nil
}

// BilanReport is the server-side financial summary for a period.
type BilanReport struct {
	Total   core.Money `json:"total"`
	Count   int        `json:"nombre"`
	Average core.Money `json:"moyenne"`
	Max     core.Money `json:"max_prix"`
	Min     core.Money `json:"min_prix"`
}

// TopProduct asks the server for the most bought products over r.
func (c *Client) TopProduct(ctx context.Context, r analytics.DateRange) (TopProductReport, error) {
	var out TopProductReport
	err := c.do(ctx, "top product", http.MethodGet, topProductPath, rangeQuery(r), nil, &out)
	return out, err
}

// Bilan asks the server for the financial summary over r.
func (c *Client) Bilan(ctx context.Context, r analytics.DateRange) (BilanReport, error) {
	var out BilanReport
	err := c.do(ctx, "bilan", http.MethodGet, bilanPath, rangeQuery(r), nil, &out)
	return out, err
}

// rangeQuery sends the period only when both bounds are set; a half-open
// range means the whole collection, as in analytics.FilterRange.
func rangeQuery(r analytics.DateRange) url.Values {
	q := url.Values{}
	if !r.Bounded() {
		return q
	}
	q.Set("start", r.Start.ISO())
	q.Set("end", r.End.ISO())
	return q
}
