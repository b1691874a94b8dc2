// Package store defines the ledger store: named JSON collections persisted
// whole, read-modify-write, with an optimistic revision per collection.
package store

import (
	"context"
	"errors"
)

// Collection names one persisted logical table.
type Collection string

const (
	Accounts     Collection = "accounts"
	Transactions Collection = "transactions_v2"
	Plan         Collection = "contribution_plan"
	Fines        Collection = "fines"
	BudgetPlan   Collection = "budget_plan"
	Config       Collection = "treasury_config"
	Categories   Collection = "categories"
)

var (
	// ErrRevisionConflict reports that a collection changed between read and
	// write. The caller must re-read and retry.
	ErrRevisionConflict = errors.New("store: revision conflict")

	ErrNotFound = errors.New("store: collection not found")
)

// Write is one collection replacement within an atomic apply. Rev is the
// revision the caller read; 0 means the collection is expected to be absent.
type Write struct {
	Collection Collection
	Rev        int64
	Value      any
}

// Store persists collections as JSON documents. Read unmarshals the current
// value into v and returns its revision (0 when the collection does not
// exist yet, leaving v untouched). Apply replaces every listed collection
// in a single atomic unit: either all writes land with bumped revisions or
// none do, and any revision mismatch fails the whole batch with
// ErrRevisionConflict.
type Store interface {
	Read(ctx context.Context, c Collection, v any) (int64, error)
	Apply(ctx context.Context, writes ...Write) error
	Close() error
}
