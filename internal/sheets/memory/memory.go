// Package memory is an in-process RowWriter, for tests and for running
// the exporter without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type Writer struct {
	mu     sync.Mutex
	rows   [][]any
	writes int
}

func New() *Writer {
	return &Writer{}
}

// ReplaceRows keeps a copy of rows and returns a synthetic reference.
func (w *Writer) ReplaceRows(_ context.Context, rows [][]any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = make([][]any, len(rows))
	for i, r := range rows {
		w.rows[i] = slices.Clone(r)
	}
	w.writes++
	return fmt.Sprintf("mem:A1:D%d", len(rows)), nil
}

// Rows returns the last written rows.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]any, len(w.rows))
	for i, r := range w.rows {
		out[i] = slices.Clone(r)
	}
	return out
}

// Writes counts ReplaceRows calls.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
