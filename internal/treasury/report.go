package treasury

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tesoreria/internal/core"
)

// Report is the read-side snapshot of the whole treasury: accounts, budget
// execution and the contribution matrix standing. It is rebuilt from the
// store on every call.
type Report struct {
	GeneratedAt  time.Time
	Accounts     []core.Account
	TotalBalance core.Money
	Execution    []core.ExecutionRow
	Obligations  []core.Obligation
	Fines        []core.Fine

	ObligationsPaid       int
	ObligationsValidating int
	ObligationsPending    int
	FinesOutstanding      core.Money
}

// BuildReport loads every collection the report needs concurrently and
// assembles the snapshot.
func (s *Service) BuildReport(ctx context.Context) (*Report, error) {
	var (
		accounts     []core.Account
		transactions []core.Transaction
		budget       []core.BudgetLine
		plan         []core.Obligation
		fines        []core.Fine
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, _, err = s.loadAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		transactions, _, err = s.loadTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		budget, _, err = s.loadBudget(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		plan, _, err = s.loadPlan(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		fines, _, err = s.loadFines(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Accounts:    accounts,
		Execution:   core.ComputeExecution(budget, transactions),
		Obligations: plan,
		Fines:       fines,
	}
	for _, a := range accounts {
		r.TotalBalance = r.TotalBalance.Add(a.Balance)
	}
	for _, o := range plan {
		switch o.Status {
		case core.StatusPaid:
			r.ObligationsPaid++
		case core.StatusValidating:
			r.ObligationsValidating++
		default:
			r.ObligationsPending++
		}
	}
	for _, f := range fines {
		if !f.Status.Settled() {
			r.FinesOutstanding = r.FinesOutstanding.Add(f.Amount)
		}
	}
	return r, nil
}
