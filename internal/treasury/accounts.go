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

// AccountPatch is an explicit, typed update for account metadata. Balance is
// deliberately absent: it only moves through transactions.
type AccountPatch struct {
	Name *string
	Type *string
}

// CreateAccount registers a new account with a zero balance. The balance
// invariant (balance equals the signed sum of the account's transactions)
// holds from the start because no transaction references it yet.
func (s *Service) CreateAccount(ctx context.Context, name, accountType string) (core.Account, error) {
	accounts, rev, err := s.loadAccounts(ctx)
	if err != nil {
		return core.Account{}, err
	}

	now := time.Now().UTC()
	account := core.Account{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      accountType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}

	accounts = append(accounts, account)
	if err := s.store.Apply(ctx, store.Write{Collection: store.Accounts, Rev: rev, Value: accounts}); err != nil {
		return core.Account{}, fmt.Errorf("persist account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpCreate,
		log.FieldAccountID, account.ID,
		"name", account.Name,
		"type", account.Type)
	s.notify(ctx, notify.EntityAccount, notify.ActionCreated, account.ID)
	return account, nil
}

// UpdateAccount applies a metadata patch and re-validates at a single
// chokepoint before persisting.
func (s *Service) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (core.Account, error) {
	accounts, rev, err := s.loadAccounts(ctx)
	if err != nil {
		return core.Account{}, err
	}

	i := accountIndex(accounts, id)
	if i < 0 {
		return core.Account{}, core.ErrAccountNotFound
	}

	updated := accounts[i]
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Type != nil {
		updated.Type = *patch.Type
	}
	updated.UpdatedAt = time.Now().UTC()
	if err := updated.Validate(); err != nil {
		return core.Account{}, err
	}
	accounts[i] = updated

	if err := s.store.Apply(ctx, store.Write{Collection: store.Accounts, Rev: rev, Value: accounts}); err != nil {
		return core.Account{}, fmt.Errorf("persist account update: %w", err)
	}

	slog.InfoContext(ctx, "Account updated",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpUpdate,
		log.FieldAccountID, id)
	s.notify(ctx, notify.EntityAccount, notify.ActionUpdated, id)
	return updated, nil
}

// DeleteAccount removes an account. It refuses with ErrHasTransactions while
// any transaction still references the account, so no transaction can be
// orphaned from the account it mutated.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	accounts, rev, err := s.loadAccounts(ctx)
	if err != nil {
		return err
	}
	i := accountIndex(accounts, id)
	if i < 0 {
		return core.ErrAccountNotFound
	}

	transactions, _, err := s.loadTransactions(ctx)
	if err != nil {
		return err
	}
	for _, t := range transactions {
		if t.AccountID == id {
			return core.ErrHasTransactions
		}
	}

	accounts = append(accounts[:i], accounts[i+1:]...)
	if err := s.store.Apply(ctx, store.Write{Collection: store.Accounts, Rev: rev, Value: accounts}); err != nil {
		return fmt.Errorf("persist account deletion: %w", err)
	}

	slog.InfoContext(ctx, "Account deleted",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpDelete,
		log.FieldAccountID, id)
	s.notify(ctx, notify.EntityAccount, notify.ActionDeleted, id)
	return nil
}

// Accounts returns the current account list.
func (s *Service) Accounts(ctx context.Context) ([]core.Account, error) {
	accounts, _, err := s.loadAccounts(ctx)
	return accounts, err
}

// Account returns one account by id.
func (s *Service) Account(ctx context.Context, id string) (core.Account, error) {
	accounts, _, err := s.loadAccounts(ctx)
	if err != nil {
		return core.Account{}, err
	}
	if i := accountIndex(accounts, id); i >= 0 {
		return accounts[i], nil
	}
	return core.Account{}, core.ErrAccountNotFound
}

func accountIndex(accounts []core.Account, id string) int {
	for i, a := range accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}
