// Package sheets exports the purchase history to a spreadsheet.
package sheets

import "context"

// Ports for outbound adapters.
type (
	// RowWriter replaces the whole content of the export sheet with rows.
	RowWriter interface {
		ReplaceRows(ctx context.Context, rows [][]any) (ref string, err error)
	}
)
