package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tesoreria/internal/core"
	"tesoreria/internal/log"
	"tesoreria/internal/notify"
	"tesoreria/internal/store"
)

// NewTransaction carries everything needed to append one ledger record.
// Amount is signed: positive income, negative expense.
type NewTransaction struct {
	AccountID   string
	Amount      core.Money
	Category    string
	Description string
	Date        time.Time
	VoucherURL  string
}

// RecordTransaction appends a transaction and moves the referenced account's
// balance by the signed amount. Ledger and balance land in one atomic store
// apply; a failure leaves both untouched.
func (s *Service) RecordTransaction(ctx context.Context, p NewTransaction) (core.Transaction, error) {
	accounts, accountsRev, err := s.loadAccounts(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	transactions, txRev, err := s.loadTransactions(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	tx, err := appendEntry(accounts, &transactions, p)
	if err != nil {
		return core.Transaction{}, err
	}

	err = s.store.Apply(ctx,
		store.Write{Collection: store.Transactions, Rev: txRev, Value: transactions},
		store.Write{Collection: store.Accounts, Rev: accountsRev, Value: accounts},
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithComponent(log.ComponentTreasury).
			WithOperation(log.OpCreate).
			WithTransaction(tx.ID, tx.AccountID, tx.Category, tx.Amount.Cents).
			ToSlice()...)
	s.notify(ctx, notify.EntityTransaction, notify.ActionCreated, tx.ID)
	return tx, nil
}

// DeleteTransaction removes a transaction, reversing its balance effect
// exactly. When the transaction settles an obligation or a fine, that row is
// reverted to pending and unlinked in the same atomic apply, so no paid row
// ever points at a removed transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	accounts, accountsRev, err := s.loadAccounts(ctx)
	if err != nil {
		return err
	}
	transactions, txRev, err := s.loadTransactions(ctx)
	if err != nil {
		return err
	}

	ti := -1
	for i, t := range transactions {
		if t.ID == id {
			ti = i
			break
		}
	}
	if ti < 0 {
		return core.ErrTransactionNotFound
	}
	tx := transactions[ti]

	if ai := accountIndex(accounts, tx.AccountID); ai >= 0 {
		accounts[ai].Balance = accounts[ai].Balance.Add(tx.Amount.Neg())
		accounts[ai].UpdatedAt = time.Now().UTC()
	}
	transactions = append(transactions[:ti], transactions[ti+1:]...)

	writes := []store.Write{
		{Collection: store.Transactions, Rev: txRev, Value: transactions},
		{Collection: store.Accounts, Rev: accountsRev, Value: accounts},
	}

	plan, planRev, err := s.loadPlan(ctx)
	if err != nil {
		return err
	}
	if unlinkObligations(plan, id) {
		writes = append(writes, store.Write{Collection: store.Plan, Rev: planRev, Value: plan})
	}

	fines, finesRev, err := s.loadFines(ctx)
	if err != nil {
		return err
	}
	if unlinkFines(fines, id) {
		writes = append(writes, store.Write{Collection: store.Fines, Rev: finesRev, Value: fines})
	}

	if err := s.store.Apply(ctx, writes...); err != nil {
		return fmt.Errorf("persist transaction deletion: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		log.NewFields().
			WithComponent(log.ComponentTreasury).
			WithOperation(log.OpDelete).
			WithTransaction(id, tx.AccountID, tx.Category, tx.Amount.Cents).
			ToSlice()...)
	s.notify(ctx, notify.EntityTransaction, notify.ActionDeleted, id)
	return nil
}

// Transactions returns the ledger, newest first.
func (s *Service) Transactions(ctx context.Context) ([]core.Transaction, error) {
	transactions, _, err := s.loadTransactions(ctx)
	return transactions, err
}

// appendEntry validates p, prepends the new record (the ledger is kept
// newest-first) and applies the balance effect to accounts in place.
func appendEntry(accounts []core.Account, transactions *[]core.Transaction, p NewTransaction) (core.Transaction, error) {
	ai := accountIndex(accounts, p.AccountID)
	if ai < 0 {
		return core.Transaction{}, core.ErrAccountNotFound
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		Date:        p.Date,
		Description: p.Description,
		Amount:      p.Amount,
		Category:    p.Category,
		AccountID:   p.AccountID,
		VoucherURL:  p.VoucherURL,
		CreatedAt:   time.Now().UTC(),
	}
	if tx.Date.IsZero() {
		tx.Date = tx.CreatedAt
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	*transactions = append([]core.Transaction{tx}, *transactions...)
	accounts[ai].Balance = accounts[ai].Balance.Add(tx.Amount)
	accounts[ai].UpdatedAt = tx.CreatedAt
	return tx, nil
}

func unlinkObligations(plan []core.Obligation, txID string) bool {
	changed := false
	for i := range plan {
		if plan[i].LinkedTransactionID == txID {
			plan[i].Status = core.StatusPending
			plan[i].LinkedTransactionID = ""
			plan[i].PaidDate = nil
			changed = true
		}
	}
	return changed
}

func unlinkFines(fines []core.Fine, txID string) bool {
	changed := false
	for i := range fines {
		if fines[i].LinkedTransactionID == txID {
			fines[i].Status = core.StatusPending
			fines[i].LinkedTransactionID = ""
			fines[i].PaidDate = nil
			changed = true
		}
	}
	return changed
}
