// Package treasury implements the write side of the ledger: accounts,
// transactions, the contribution plan and fines. Every mutation is a
// read-modify-write over whole store collections committed in one atomic
// apply, so cross-entity invariants (balance vs. ledger, obligation vs.
// linked transaction) cannot be half-written.
package treasury

import (
	"context"
	"fmt"

	"tesoreria/internal/core"
	"tesoreria/internal/notify"
	"tesoreria/internal/roster"
	"tesoreria/internal/store"
)

// Service orchestrates all treasury mutations over the ledger store.
type Service struct {
	store    store.Store
	roster   roster.Provider
	notifier notify.Notifier
}

// New creates a treasury service. roster may be nil if plan generation is
// never used; notifier may be nil to disable change notifications.
func New(st store.Store, r roster.Provider, n notify.Notifier) *Service {
	return &Service{store: st, roster: r, notifier: n}
}

func (s *Service) notify(ctx context.Context, entity notify.Entity, action notify.Action, id string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.NewChange(entity, action, id))
	}
}

func (s *Service) loadAccounts(ctx context.Context) ([]core.Account, int64, error) {
	var v []core.Account
	rev, err := s.store.Read(ctx, store.Accounts, &v)
	if err != nil {
		return nil, 0, fmt.Errorf("load accounts: %w", err)
	}
	return v, rev, nil
}

func (s *Service) loadTransactions(ctx context.Context) ([]core.Transaction, int64, error) {
	var v []core.Transaction
	rev, err := s.store.Read(ctx, store.Transactions, &v)
	if err != nil {
		return nil, 0, fmt.Errorf("load transactions: %w", err)
	}
	return v, rev, nil
}

func (s *Service) loadPlan(ctx context.Context) ([]core.Obligation, int64, error) {
	var v []core.Obligation
	rev, err := s.store.Read(ctx, store.Plan, &v)
	if err != nil {
		return nil, 0, fmt.Errorf("load contribution plan: %w", err)
	}
	return v, rev, nil
}

func (s *Service) loadFines(ctx context.Context) ([]core.Fine, int64, error) {
	var v []core.Fine
	rev, err := s.store.Read(ctx, store.Fines, &v)
	if err != nil {
		return nil, 0, fmt.Errorf("load fines: %w", err)
	}
	return v, rev, nil
}

func (s *Service) loadBudget(ctx context.Context) ([]core.BudgetLine, int64, error) {
	var v []core.BudgetLine
	rev, err := s.store.Read(ctx, store.BudgetPlan, &v)
	if err != nil {
		return nil, 0, fmt.Errorf("load budget plan: %w", err)
	}
	return v, rev, nil
}

func (s *Service) loadConfig(ctx context.Context) (core.TreasuryConfig, int64, error) {
	var v core.TreasuryConfig
	rev, err := s.store.Read(ctx, store.Config, &v)
	if err != nil {
		return core.TreasuryConfig{}, 0, fmt.Errorf("load treasury config: %w", err)
	}
	return v, rev, nil
}
