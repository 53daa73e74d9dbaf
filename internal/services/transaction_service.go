package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

// TransactionStore is the slice of the repository the transaction service
// needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error)
	SoftDeleteTransaction(ctx context.Context, id int64) error
}

// SyncPublisher publishes ledger sync messages. *amqp.Client satisfies it.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64, op string) error
}

// TransactionService orchestrates transaction writes across SQLite and AMQP.
// The database is the source of truth; ledger export is asynchronous and
// best-effort, so a broken broker never blocks a save.
type TransactionService struct {
	store     TransactionStore
	publisher SyncPublisher
}

func NewTransactionService(store TransactionStore, publisher SyncPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// CreateTransaction validates and saves a transaction, then publishes a sync
// message for the ledger worker.
func (s *TransactionService) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}

	id, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishSync(ctx, id, amqp.OpUpsert); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
		// Do not fail the request, the transaction is saved locally.
	}

	return id, nil
}

// DeleteTransaction soft deletes a transaction and asks the ledger worker to
// remove the exported copy.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.SoftDeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}

	if err := s.publishSync(ctx, id, amqp.OpDelete); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
	}

	return nil
}

// ListTransactions returns the live transactions of a month.
func (s *TransactionService) ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error) {
	if month < 1 || month > 12 {
		return nil, core.ErrInvalidMonth
	}
	return s.store.ListTransactions(ctx, year, month)
}

func (s *TransactionService) publishSync(ctx context.Context, id int64, op string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishTransactionSync(ctx, id, op)
}
