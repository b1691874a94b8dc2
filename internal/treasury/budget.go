package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tesoreria/internal/core"
	"tesoreria/internal/log"
	"tesoreria/internal/notify"
	"tesoreria/internal/store"
)

// BudgetExecution recomputes the spend-to-budget projection from the
// current plan and transaction log. Nothing is cached between calls.
func (s *Service) BudgetExecution(ctx context.Context) ([]core.ExecutionRow, error) {
	budget, _, err := s.loadBudget(ctx)
	if err != nil {
		return nil, err
	}
	transactions, _, err := s.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return core.ComputeExecution(budget, transactions), nil
}

// SetBudgetLine creates or replaces the planned amount for a category and
// makes sure the category itself is registered. The contribution line is
// normally maintained by plan generation; setting it here overrides that
// until the next generation.
func (s *Service) SetBudgetLine(ctx context.Context, category string, amount core.Money) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.ErrEmptyCategory
	}
	if amount.Cents < 0 {
		return core.ErrInvalidAmount
	}

	budget, budgetRev, err := s.loadBudget(ctx)
	if err != nil {
		return err
	}
	budget = upsertBudgetLine(budget, category, amount)

	categories, catRev, err := s.loadCategories(ctx)
	if err != nil {
		return err
	}
	writes := []store.Write{{Collection: store.BudgetPlan, Rev: budgetRev, Value: budget}}
	if !containsCategory(categories, category) {
		categories = append(categories, category)
		writes = append(writes, store.Write{Collection: store.Categories, Rev: catRev, Value: categories})
	}

	if err := s.store.Apply(ctx, writes...); err != nil {
		return fmt.Errorf("persist budget line: %w", err)
	}

	slog.InfoContext(ctx, "Budget line set",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpUpdate,
		log.FieldCategory, category,
		"budgeted_cents", amount.Cents)
	s.notify(ctx, notify.EntityBudget, notify.ActionUpdated, category)
	return nil
}

// BudgetPlan returns the raw budget lines.
func (s *Service) BudgetPlan(ctx context.Context) ([]core.BudgetLine, error) {
	budget, _, err := s.loadBudget(ctx)
	return budget, err
}

// Categories returns the registered category list.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, _, err := s.loadCategories(ctx)
	return categories, err
}

func (s *Service) loadCategories(ctx context.Context) ([]string, int64, error) {
	var categories []string
	rev, err := s.store.Read(ctx, store.Categories, &categories)
	if err != nil {
		return nil, 0, fmt.Errorf("load categories: %w", err)
	}
	return categories, rev, nil
}

func containsCategory(categories []string, category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}
