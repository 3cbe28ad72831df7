// Package worker keeps the spreadsheet export in step with the purchases.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"purchaseflow/internal/amqp"
	"purchaseflow/internal/log"
	"purchaseflow/internal/sheets"
	"purchaseflow/internal/store"
)

// SnapshotSource reloads the purchase collections.
type SnapshotSource interface {
	FetchAll(ctx context.Context) store.Snapshot
}

// ExportWorker rewrites the spreadsheet from a fresh snapshot, on demand,
// on purchase events or periodically.
type ExportWorker struct {
	source SnapshotSource
	writer sheets.RowWriter
	logger *log.Logger

	// mu serializes exports; the sheet is cleared then rewritten.
	mu         sync.Mutex
	lastExport time.Time
	exports    int
}

func NewExportWorker(source SnapshotSource, writer sheets.RowWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ExportWorker{
		source: source,
		writer: writer,
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// ExportAll reloads the collections and replaces the sheet contents.
func (w *ExportWorker) ExportAll(ctx context.Context) (sheets.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := w.source.FetchAll(ctx)
	result, err := sheets.Export(ctx, w.writer, snap.Products, snap.Purchases)
	if err != nil {
		w.logger.ErrorContext(ctx, "Export failed",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		return sheets.Result{}, err
	}

	w.lastExport = time.Now()
	w.exports++
	w.logger.InfoContext(ctx, "Export complete",
		log.FieldOperation, log.OpExport,
		log.FieldMode, snap.Mode.String(),
		log.FieldRows, result.Rows,
		"range", result.Ref,
		"total_cents", result.Total.Cents)
	return result, nil
}

// HandlePurchaseEvent re-exports after a purchase was created or deleted.
// A returned error makes the consumer requeue the message.
func (w *ExportWorker) HandlePurchaseEvent(ctx context.Context, msg *amqp.PurchaseEventMessage) error {
	w.logger.InfoContext(ctx, "Processing purchase event",
		log.FieldEvent, string(msg.Type),
		log.FieldPurchaseID, msg.PurchaseID)

	if _, err := w.ExportAll(ctx); err != nil {
		return fmt.Errorf("export after %s: %w", msg.Type, err)
	}
	return nil
}

// RunPeriodic exports every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.ExportAll(ctx)
		}
	}
}

// Stats reports how many exports succeeded and when the last one did.
func (w *ExportWorker) Stats() (exports int, last time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports, w.lastExport
}
