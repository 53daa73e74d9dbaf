package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/forecast"
)

// RecurringStore is the slice of the repository the recurring processor
// needs.
type RecurringStore interface {
	DueRecurring(ctx context.Context, now time.Time) ([]core.RecurringTransaction, error)
	AdvanceRecurring(ctx context.Context, id int64, next time.Time) error
	DeactivateRecurring(ctx context.Context, id int64) error
}

// TransactionCreator creates transactions. *TransactionService satisfies it.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
}

// RecurringProcessor materializes due recurring templates into transactions.
type RecurringProcessor struct {
	store        RecurringStore
	transactions TransactionCreator
}

func NewRecurringProcessor(store RecurringStore, transactions TransactionCreator) *RecurringProcessor {
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
	}
}

// ProcessDue creates a transaction for every occurrence that fell due on or
// before now. A template that missed several runs (the worker was down)
// catches up in one sweep: each missed occurrence gets its own transaction
// on its own date. Returns the number of transactions created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.store.DueRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"due", len(due),
		"processing_date", now.Format("2006-01-02"))

	created := 0
	for _, rt := range due {
		n, err := p.processTemplate(ctx, rt, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring template",
				"id", rt.ID,
				"description", rt.Description,
				"error", err)
			continue
		}
		created += n
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"created", created,
		"templates", len(due))

	return created, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, rt core.RecurringTransaction, now time.Time) (int, error) {
	next := rt.NextDate.Time
	created := 0

	for !next.After(now) {
		if p.pastEnd(rt, next) {
			if err := p.store.DeactivateRecurring(ctx, rt.ID); err != nil {
				return created, fmt.Errorf("deactivate template: %w", err)
			}
			slog.InfoContext(ctx, "Recurring template reached its end date",
				"id", rt.ID,
				"description", rt.Description)
			return created, nil
		}

		id := rt.ID
		tx := core.Transaction{
			AccountID:   rt.AccountID,
			Date:        core.Date{Time: next},
			Description: rt.Description,
			Amount:      rt.Amount,
			Category:    rt.Category,
			RecurringID: &id,
		}
		if _, err := p.transactions.CreateTransaction(ctx, tx); err != nil {
			return created, fmt.Errorf("create transaction for %s: %w", next.Format("2006-01-02"), err)
		}
		created++

		// Always derive the next occurrence from the template's FixedDay so
		// a clamped date (Jan 31 -> Feb 28) re-expands in longer months.
		next = forecast.NextDate(next, rt.Every, rt.FixedDay)
	}

	if err := p.store.AdvanceRecurring(ctx, rt.ID, next); err != nil {
		return created, fmt.Errorf("advance template: %w", err)
	}

	if created > 0 {
		slog.InfoContext(ctx, "Created transactions from recurring template",
			"id", rt.ID,
			"description", rt.Description,
			"amount_cents", rt.Amount.Cents,
			"created", created,
			"next_date", next.Format("2006-01-02"))
	}
	return created, nil
}

func (p *RecurringProcessor) pastEnd(rt core.RecurringTransaction, occurrence time.Time) bool {
	return !rt.EndDate.IsEmpty() && occurrence.After(rt.EndDate.Time)
}
