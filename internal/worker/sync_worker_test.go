package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

type fakeSyncStore struct {
	transactions map[int64]core.Transaction
	synced       []int64
	syncErrors   []int64
}

func newFakeSyncStore(txs ...core.Transaction) *fakeSyncStore {
	s := &fakeSyncStore{transactions: map[int64]core.Transaction{}}
	for _, t := range txs {
		s.transactions[t.ID] = t
	}
	return s
}

func (f *fakeSyncStore) GetTransaction(_ context.Context, id int64) (*core.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &t, nil
}

func (f *fakeSyncStore) UnsyncedTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.transactions {
		if len(out) >= limit {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeSyncStore) MarkSynced(_ context.Context, id int64) error {
	f.synced = append(f.synced, id)
	return nil
}

func (f *fakeSyncStore) MarkSyncError(_ context.Context, id int64) error {
	f.syncErrors = append(f.syncErrors, id)
	return nil
}

type fakeLedger struct {
	appended []core.Transaction
	deleted  []int64

	appendErr error
}

func (f *fakeLedger) Append(_ context.Context, t core.Transaction) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.appended = append(f.appended, t)
	return "mem:1", nil
}

func (f *fakeLedger) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func syncedTransaction(id int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		AccountID:   1,
		Date:        core.Date{Time: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		Description: "groceries",
		Amount:      core.Money{Cents: -4250},
		Category:    "Food",
	}
}

func TestSyncWorker_HandleUpsert(t *testing.T) {
	store := newFakeSyncStore(syncedTransaction(1))
	led := &fakeLedger{}
	w := NewSyncWorker(store, led, led, 10)

	msg := amqp.NewTransactionSyncMessage(1, amqp.OpUpsert)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}

	if len(led.appended) != 1 || led.appended[0].ID != 1 {
		t.Errorf("appended = %v, want transaction 1", led.appended)
	}
	if len(store.synced) != 1 || store.synced[0] != 1 {
		t.Errorf("synced = %v, want [1]", store.synced)
	}
}

func TestSyncWorker_HandleUpsertMissingTransaction(t *testing.T) {
	store := newFakeSyncStore()
	led := &fakeLedger{}
	w := NewSyncWorker(store, led, led, 10)

	// A row deleted between publish and consume must not requeue forever.
	msg := amqp.NewTransactionSyncMessage(99, amqp.OpUpsert)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Errorf("HandleSyncMessage() for missing transaction error = %v, want nil", err)
	}
	if len(led.appended) != 0 {
		t.Error("nothing should be appended for a missing transaction")
	}
}

func TestSyncWorker_HandleUpsertLedgerFailure(t *testing.T) {
	store := newFakeSyncStore(syncedTransaction(1))
	led := &fakeLedger{appendErr: errors.New("quota exceeded")}
	w := NewSyncWorker(store, led, led, 10)

	msg := amqp.NewTransactionSyncMessage(1, amqp.OpUpsert)
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("HandleSyncMessage() should fail so the message requeues")
	}
	if len(store.syncErrors) != 1 || store.syncErrors[0] != 1 {
		t.Errorf("syncErrors = %v, want [1]", store.syncErrors)
	}
	if len(store.synced) != 0 {
		t.Error("a failed export must not be marked synced")
	}
}

func TestSyncWorker_HandleDelete(t *testing.T) {
	store := newFakeSyncStore()
	led := &fakeLedger{}
	w := NewSyncWorker(store, led, led, 10)

	msg := amqp.NewTransactionSyncMessage(7, amqp.OpDelete)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}
	if len(led.deleted) != 1 || led.deleted[0] != 7 {
		t.Errorf("deleted = %v, want [7]", led.deleted)
	}
}

func TestSyncWorker_HandleDeleteWithoutDeleter(t *testing.T) {
	w := NewSyncWorker(newFakeSyncStore(), &fakeLedger{}, nil, 10)

	msg := amqp.NewTransactionSyncMessage(7, amqp.OpDelete)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Errorf("HandleSyncMessage() without deleter error = %v, want nil", err)
	}
}

func TestSyncWorker_HandleUnknownOp(t *testing.T) {
	w := NewSyncWorker(newFakeSyncStore(), &fakeLedger{}, nil, 10)

	msg := amqp.NewTransactionSyncMessage(7, "rename")
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Errorf("HandleSyncMessage() with unknown op error = %v, want nil", err)
	}
}

func TestSyncWorker_StartupSyncCheck(t *testing.T) {
	store := newFakeSyncStore(syncedTransaction(1), syncedTransaction(2))
	led := &fakeLedger{}
	w := NewSyncWorker(store, led, led, 10)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if len(led.appended) != 2 {
		t.Errorf("appended %d transactions, want 2", len(led.appended))
	}
	if len(store.synced) != 2 {
		t.Errorf("synced %d transactions, want 2", len(store.synced))
	}
}
