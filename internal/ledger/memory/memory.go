// Package memory provides an in-memory ledger used for local development
// and tests, where a real Google Sheets spreadsheet is unavailable.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
// An already stored ID is overwritten in place so re-exports after a
// partial failure never duplicate rows, matching the Google adapter.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items {
		if existing.ID == t.ID {
			s.items[i] = t
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.items = append(s.items, t)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Delete removes the stored transaction with the given ID. Missing IDs are
// not an error, matching the Google adapter.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Items returns a copy of the stored transactions.
func (s *Store) Items() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}
