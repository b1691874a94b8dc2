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
	"tesoreria/internal/roster"
	"tesoreria/internal/store"
)

// Config returns the stored treasury configuration.
func (s *Service) Config(ctx context.Context) (core.TreasuryConfig, error) {
	cfg, _, err := s.loadConfig(ctx)
	return cfg, err
}

// SaveConfig validates and replaces the treasury configuration. Changes take
// effect on the next plan generation, not retroactively.
func (s *Service) SaveConfig(ctx context.Context, cfg core.TreasuryConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, rev, err := s.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Apply(ctx, store.Write{Collection: store.Config, Rev: rev, Value: cfg}); err != nil {
		return fmt.Errorf("persist treasury config: %w", err)
	}
	slog.InfoContext(ctx, "Treasury config saved",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpUpdate,
		"monthly_amount_cents", cfg.MonthlyAmount.Cents,
		"periods", len(cfg.Periods))
	s.notify(ctx, notify.EntityConfig, notify.ActionUpdated, "")
	return nil
}

// GeneratePlan rebuilds the obligation matrix (unique organizer × configured
// period) from the committee roster, all rows pending at the configured
// monthly amount, and resets the contribution budget line to
// members × periods × monthly. Regeneration replaces the plan wholesale, so
// it refuses to run while any obligation is paid unless force is set.
func (s *Service) GeneratePlan(ctx context.Context, force bool) ([]core.Obligation, error) {
	cfg, _, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("treasury config: %w", err)
	}

	groups, err := s.roster.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	members := roster.UniqueMembers(groups)
	if len(members) == 0 {
		return nil, core.ErrEmptyRoster
	}

	existing, planRev, err := s.loadPlan(ctx)
	if err != nil {
		return nil, err
	}
	if !force {
		for _, o := range existing {
			if o.Status == core.StatusPaid {
				return nil, core.ErrPlanHasPayments
			}
		}
	}

	plan := make([]core.Obligation, 0, len(members)*len(cfg.Periods))
	for _, m := range members {
		for _, p := range cfg.Periods {
			plan = append(plan, core.Obligation{
				ID:            uuid.NewString(),
				OrganizerID:   roster.MemberID(m.Name),
				OrganizerName: m.Name,
				OrganizerRole: m.Role,
				Period:        p.ID,
				PeriodLabel:   p.Label,
				Expected:      cfg.MonthlyAmount,
				Status:        core.StatusPending,
				Deadline:      p.Deadline,
			})
		}
	}

	budget, budgetRev, err := s.loadBudget(ctx)
	if err != nil {
		return nil, err
	}
	total := core.Money{Cents: int64(len(members)) * int64(len(cfg.Periods)) * cfg.MonthlyAmount.Cents}
	budget = upsertBudgetLine(budget, core.ContributionCategory, total)

	err = s.store.Apply(ctx,
		store.Write{Collection: store.Plan, Rev: planRev, Value: plan},
		store.Write{Collection: store.BudgetPlan, Rev: budgetRev, Value: budget},
	)
	if err != nil {
		return nil, fmt.Errorf("persist contribution plan: %w", err)
	}

	slog.InfoContext(ctx, "Contribution plan generated",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpGenerate,
		"organizers", len(members),
		"periods", len(cfg.Periods),
		"obligations", len(plan),
		"budget_cents", total.Cents,
		"forced", force)
	s.notify(ctx, notify.EntityObligation, notify.ActionGenerated, "")
	return plan, nil
}

// RecordPaymentParams identifies one obligation cell and how it is settled.
// A zero Amount falls back to the obligation's expected amount.
type RecordPaymentParams struct {
	OrganizerID string
	Period      string
	AccountID   string
	Amount      core.Money
	VoucherURL  string
}

// PaymentResult links the settled obligation to its generated transaction.
type PaymentResult struct {
	Obligation  core.Obligation
	Transaction core.Transaction
}

// RecordPayment settles one (organizer, period) cell: it creates the income
// transaction in the contribution category and transitions the obligation to
// paid, both in one atomic apply. A second call on the same cell fails with
// ErrAlreadyPaid and changes nothing.
func (s *Service) RecordPayment(ctx context.Context, p RecordPaymentParams) (PaymentResult, error) {
	plan, planRev, err := s.loadPlan(ctx)
	if err != nil {
		return PaymentResult{}, err
	}
	oi := obligationIndex(plan, p.OrganizerID, p.Period)
	if oi < 0 {
		return PaymentResult{}, core.ErrObligationNotFound
	}
	if plan[oi].Status.Settled() {
		return PaymentResult{}, core.ErrAlreadyPaid
	}

	amount := p.Amount
	if amount.Cents == 0 {
		amount = plan[oi].Expected
	}
	if amount.Cents <= 0 {
		return PaymentResult{}, core.ErrInvalidAmount
	}

	accounts, accountsRev, err := s.loadAccounts(ctx)
	if err != nil {
		return PaymentResult{}, err
	}
	transactions, txRev, err := s.loadTransactions(ctx)
	if err != nil {
		return PaymentResult{}, err
	}

	tx, err := appendEntry(accounts, &transactions, NewTransaction{
		AccountID:   p.AccountID,
		Amount:      amount,
		Category:    core.ContributionCategory,
		Description: fmt.Sprintf("Contribution %s - %s", plan[oi].PeriodLabel, plan[oi].OrganizerName),
		VoucherURL:  p.VoucherURL,
	})
	if err != nil {
		return PaymentResult{}, err
	}

	settleObligation(&plan[oi], tx.ID, p.VoucherURL)

	err = s.store.Apply(ctx,
		store.Write{Collection: store.Plan, Rev: planRev, Value: plan},
		store.Write{Collection: store.Transactions, Rev: txRev, Value: transactions},
		store.Write{Collection: store.Accounts, Rev: accountsRev, Value: accounts},
	)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("persist contribution payment: %w", err)
	}

	slog.InfoContext(ctx, "Contribution payment recorded",
		append(log.NewFields().
			WithComponent(log.ComponentTreasury).
			WithOperation(log.OpSettle).
			WithObligation(p.OrganizerID, p.Period, tx.Amount.Cents).
			ToSlice(), log.FieldTransactionID, tx.ID)...)
	s.notify(ctx, notify.EntityObligation, notify.ActionPaid, plan[oi].ID)
	return PaymentResult{Obligation: plan[oi], Transaction: tx}, nil
}

// SubmitForValidation marks a pending obligation as validating with its
// voucher attached, the state the quick access panel shows while the
// treasurer reviews the payment. Submitting again while validating just
// refreshes the voucher; a paid obligation is rejected.
func (s *Service) SubmitForValidation(ctx context.Context, organizerID, period, voucherURL string) (core.Obligation, error) {
	if voucherURL == "" {
		return core.Obligation{}, core.ErrMissingVoucher
	}
	plan, planRev, err := s.loadPlan(ctx)
	if err != nil {
		return core.Obligation{}, err
	}
	oi := obligationIndex(plan, organizerID, period)
	if oi < 0 {
		return core.Obligation{}, core.ErrObligationNotFound
	}
	if plan[oi].Status.Settled() {
		return core.Obligation{}, core.ErrAlreadyPaid
	}

	plan[oi].Status = core.StatusValidating
	plan[oi].VoucherURL = voucherURL

	if err := s.store.Apply(ctx, store.Write{Collection: store.Plan, Rev: planRev, Value: plan}); err != nil {
		return core.Obligation{}, fmt.Errorf("persist obligation submission: %w", err)
	}

	slog.InfoContext(ctx, "Obligation submitted for validation",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOrganizerID, organizerID,
		log.FieldPeriod, period)
	s.notify(ctx, notify.EntityObligation, notify.ActionUpdated, plan[oi].ID)
	return plan[oi], nil
}

// Obligations returns the full contribution plan.
func (s *Service) Obligations(ctx context.Context) ([]core.Obligation, error) {
	plan, _, err := s.loadPlan(ctx)
	return plan, err
}

// ObligationsForOrganizer returns one organizer's rows in configured period
// order, the order the payment flow enforces.
func (s *Service) ObligationsForOrganizer(ctx context.Context, organizerID string) ([]core.Obligation, error) {
	plan, _, err := s.loadPlan(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Obligation
	for _, o := range plan {
		if o.OrganizerID == organizerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func obligationIndex(plan []core.Obligation, organizerID, period string) int {
	for i, o := range plan {
		if o.OrganizerID == organizerID && o.Period == period {
			return i
		}
	}
	return -1
}

func settleObligation(o *core.Obligation, txID, voucherURL string) {
	now := time.Now().UTC()
	o.Status = core.StatusPaid
	o.LinkedTransactionID = txID
	o.PaidDate = &now
	if voucherURL != "" {
		o.VoucherURL = voucherURL
	}
}

func upsertBudgetLine(budget []core.BudgetLine, category string, amount core.Money) []core.BudgetLine {
	for i := range budget {
		if budget[i].Category == category {
			budget[i].Budgeted = amount
			return budget
		}
	}
	return append(budget, core.BudgetLine{Category: category, Budgeted: amount})
}
