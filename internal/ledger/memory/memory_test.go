package memory

import (
	"context"
	"testing"
	"time"

	"bilancio/internal/core"
)

func testTransaction(id int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		AccountID:   1,
		Date:        core.Date{Time: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		Description: "groceries",
		Amount:      core.Money{Cents: -4250},
		Category:    "Food",
	}
}

func TestStore_Append(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, testTransaction(1))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("Append() ref = %q, want %q", ref, "mem:1")
	}
	if len(s.Items()) != 1 {
		t.Errorf("Items() len = %d, want 1", len(s.Items()))
	}
}

func TestStore_AppendSameIDOverwritesInPlace(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Append(ctx, testTransaction(1)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Append(ctx, testTransaction(2)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// A re-export of the same ID must not add a second row.
	updated := testTransaction(1)
	updated.Amount = core.Money{Cents: -9999}
	ref, err := s.Append(ctx, updated)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("Append() ref = %q, want %q", ref, "mem:1")
	}

	items := s.Items()
	if len(items) != 2 {
		t.Fatalf("Items() len = %d, want 2", len(items))
	}
	if items[0].Amount.Cents != -9999 {
		t.Errorf("stored amount = %d, want -9999", items[0].Amount.Cents)
	}
}

func TestStore_AppendInvalid(t *testing.T) {
	s := New()
	tx := testTransaction(1)
	tx.Description = ""

	if _, err := s.Append(context.Background(), tx); err == nil {
		t.Error("Append() should reject a transaction with empty description")
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if _, err := s.Append(ctx, testTransaction(id)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if err := s.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	items := s.Items()
	if len(items) != 2 {
		t.Fatalf("Items() len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.ID == 2 {
			t.Error("Delete() left transaction 2 in the store")
		}
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	s := New()
	if err := s.Delete(context.Background(), 99); err != nil {
		t.Errorf("Delete() of missing ID should be a no-op, got error %v", err)
	}
}
