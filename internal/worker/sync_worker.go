package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// SyncStore is the slice of the repository the sync worker needs.
type SyncStore interface {
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	UnsyncedTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker exports transactions from SQLite to the family ledger. AMQP
// messages drive it in steady state; ProcessPending is the backup sweep for
// messages lost while the worker was down.
type SyncWorker struct {
	store     SyncStore
	writer    ledger.Writer
	deleter   ledger.Deleter
	batchSize int
}

func NewSyncWorker(store SyncStore, writer ledger.Writer, deleter ledger.Deleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single sync message from AMQP. Returning an
// error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"op", msg.Op)

	switch msg.Op {
	case amqp.OpUpsert:
		return w.exportTransaction(ctx, msg.ID)
	case amqp.OpDelete:
		return w.removeTransaction(ctx, msg.ID)
	default:
		// Drop unknown ops instead of requeueing them forever.
		slog.WarnContext(ctx, "Unknown sync operation, dropping message",
			"id", msg.ID,
			"op", msg.Op)
		return nil
	}
}

func (w *SyncWorker) exportTransaction(ctx context.Context, id int64) error {
	t, err := w.store.GetTransaction(ctx, id)
	if err != nil {
		// The row may have been deleted between publish and consume. The
		// delete message will follow; nothing to export.
		slog.WarnContext(ctx, "Transaction not found for export, dropping message",
			"id", id,
			"error", err)
		return nil
	}

	if _, err := w.writer.Append(ctx, *t); err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	return w.store.MarkSynced(ctx, id)
}

func (w *SyncWorker) removeTransaction(ctx context.Context, id int64) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No ledger deleter configured, skipping deletion", "id", id)
		return nil
	}
	if err := w.deleter.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete from ledger: %w", err)
	}
	return nil
}

// ProcessPending exports any transactions that never got a sync message.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.UnsyncedTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, t := range pending {
		if err := w.exportTransaction(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending transaction",
				"id", t.ID,
				"error", err)
		}
	}

	return nil
}

// StartupSyncCheck drains the pending queue with a larger batch before the
// consumer loop starts, recovering from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.UnsyncedTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing",
		"count", len(pending))

	synced, failed := 0, 0
	for _, t := range pending {
		if err := w.exportTransaction(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", t.ID,
				"error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)

	return nil
}
