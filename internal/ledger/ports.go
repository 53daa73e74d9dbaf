package ledger

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound ledger adapters.
type (
	// Writer appends a transaction to the family ledger and returns a
	// reference to the written row.
	Writer interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// Deleter removes a previously exported transaction by its ID.
	Deleter interface {
		Delete(ctx context.Context, id int64) error
	}
)
