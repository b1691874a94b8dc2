package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"tesoreria/internal/core"
	"tesoreria/internal/notify"
	"tesoreria/internal/roster"
	"tesoreria/internal/store/memory"
)

func testRoster() *roster.Memory {
	return roster.NewMemory(
		roster.Group{
			Name: "Directive Board",
			Members: []roster.Member{
				{Name: "Maria Lopez", Role: "President"},
				{Name: "Juan Perez", Role: "Secretary"},
			},
		},
		roster.Group{
			Name: "Scientific Committee",
			Members: []roster.Member{
				{Name: "Maria Lopez", Role: "Member"},
				{Name: "Ana Torres", Role: "Member"},
			},
		},
	)
}

func testConfig() core.TreasuryConfig {
	return core.TreasuryConfig{
		MonthlyAmount: core.Money{Cents: 5000},
		Periods: []core.Period{
			{ID: "2026-01", Label: "January 2026", Deadline: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)},
			{ID: "2026-02", Label: "February 2026", Deadline: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
			{ID: "2026-03", Label: "March 2026", Deadline: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(memory.New(), testRoster(), nil)
}

// newPlannedService returns a service with the config saved, the plan
// generated and one account created.
func newPlannedService(t *testing.T) (*Service, core.Account) {
	t.Helper()
	ctx := context.Background()
	svc := newTestService(t)
	if err := svc.SaveConfig(ctx, testConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if _, err := svc.GeneratePlan(ctx, false); err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return svc, account
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if account.ID == "" {
		t.Fatal("expected generated account id")
	}
	if account.Balance.Cents != 0 {
		t.Fatalf("expected zero initial balance, got %d", account.Balance.Cents)
	}

	name := "Cash Box"
	updated, err := svc.UpdateAccount(ctx, account.ID, AccountPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if updated.Name != "Cash Box" || updated.Type != "bank" {
		t.Fatalf("unexpected account after patch: %+v", updated)
	}

	if _, err := svc.CreateAccount(ctx, "", "bank"); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := svc.UpdateAccount(ctx, "missing", AccountPatch{Name: &name}); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	if err := svc.DeleteAccount(ctx, account.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := svc.Account(ctx, account.ID); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after delete, got %v", err)
	}
}

func TestDeleteAccountWithTransactions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := svc.RecordTransaction(ctx, NewTransaction{
		AccountID:   account.ID,
		Amount:      core.Money{Cents: 10000},
		Category:    "Donations",
		Description: "Opening donation",
	}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	if err := svc.DeleteAccount(ctx, account.ID); !errors.Is(err, core.ErrHasTransactions) {
		t.Fatalf("expected ErrHasTransactions, got %v", err)
	}
}

func TestBalanceTracksSignedSum(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	income, err := svc.RecordTransaction(ctx, NewTransaction{
		AccountID:   account.ID,
		Amount:      core.Money{Cents: 150000},
		Category:    "Donations",
		Description: "Sponsor payment",
	})
	if err != nil {
		t.Fatalf("record income: %v", err)
	}
	if _, err := svc.RecordTransaction(ctx, NewTransaction{
		AccountID:   account.ID,
		Amount:      core.Money{Cents: -40000},
		Category:    "Catering",
		Description: "Coffee break",
	}); err != nil {
		t.Fatalf("record expense: %v", err)
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 110000 {
		t.Fatalf("expected balance 110000, got %d", got.Balance.Cents)
	}

	if err := svc.DeleteTransaction(ctx, income.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	got, err = svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != -40000 {
		t.Fatalf("expected balance -40000 after reversal, got %d", got.Balance.Cents)
	}

	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction left, got %d", len(transactions))
	}
}

func TestRecordTransactionValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	tests := []struct {
		name    string
		params  NewTransaction
		wantErr error
	}{
		{
			name: "unknown account",
			params: NewTransaction{
				AccountID:   "missing",
				Amount:      core.Money{Cents: 100},
				Category:    "Donations",
				Description: "x",
			},
			wantErr: core.ErrAccountNotFound,
		},
		{
			name: "zero amount",
			params: NewTransaction{
				AccountID:   account.ID,
				Category:    "Donations",
				Description: "x",
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "empty description",
			params: NewTransaction{
				AccountID: account.ID,
				Amount:    core.Money{Cents: 100},
				Category:  "Donations",
			},
			wantErr: core.ErrEmptyDescription,
		},
		{
			name: "empty category",
			params: NewTransaction{
				AccountID:   account.ID,
				Amount:      core.Money{Cents: 100},
				Description: "x",
			},
			wantErr: core.ErrEmptyCategory,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RecordTransaction(ctx, tt.params); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 0 {
		t.Fatalf("rejected transactions must not move the balance, got %d", got.Balance.Cents)
	}
}

func TestGeneratePlan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if err := svc.SaveConfig(ctx, testConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	plan, err := svc.GeneratePlan(ctx, false)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}

	// 3 unique organizers (Maria Lopez deduplicated across groups) x 3 periods.
	if len(plan) != 9 {
		t.Fatalf("expected 9 obligations, got %d", len(plan))
	}
	for _, o := range plan {
		if o.Status != core.StatusPending {
			t.Fatalf("expected pending obligation, got %s", o.Status)
		}
		if o.Expected.Cents != 5000 {
			t.Fatalf("expected 5000 cents per obligation, got %d", o.Expected.Cents)
		}
	}

	budget, err := svc.BudgetPlan(ctx)
	if err != nil {
		t.Fatalf("BudgetPlan: %v", err)
	}
	if len(budget) != 1 || budget[0].Category != core.ContributionCategory {
		t.Fatalf("expected a single contribution budget line, got %+v", budget)
	}
	if budget[0].Budgeted.Cents != 3*3*5000 {
		t.Fatalf("expected budget 45000, got %d", budget[0].Budgeted.Cents)
	}
}

func TestGeneratePlanDeduplicatesByName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if err := svc.SaveConfig(ctx, testConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	plan, err := svc.GeneratePlan(ctx, false)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}

	count := 0
	for _, o := range plan {
		if o.OrganizerID == "maria-lopez" {
			count++
			if o.OrganizerRole != "President" {
				t.Fatalf("expected first seen role to win, got %q", o.OrganizerRole)
			}
		}
	}
	if count != 3 {
		t.Fatalf("expected one obligation per period for maria-lopez, got %d", count)
	}
}

func TestGeneratePlanRefusesOverPayments(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "maria-lopez",
		Period:      "2026-01",
		AccountID:   account.ID,
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	if _, err := svc.GeneratePlan(ctx, false); !errors.Is(err, core.ErrPlanHasPayments) {
		t.Fatalf("expected ErrPlanHasPayments, got %v", err)
	}

	plan, err := svc.GeneratePlan(ctx, true)
	if err != nil {
		t.Fatalf("forced GeneratePlan: %v", err)
	}
	for _, o := range plan {
		if o.Status != core.StatusPending {
			t.Fatalf("forced regeneration must reset every row to pending, got %s", o.Status)
		}
	}
}

func TestGeneratePlanRequiresConfig(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.GeneratePlan(ctx, false); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected config validation failure, got %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	res, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "juan-perez",
		Period:      "2026-01",
		AccountID:   account.ID,
		VoucherURL:  "https://vouchers/abc.jpg",
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if res.Obligation.Status != core.StatusPaid {
		t.Fatalf("expected paid obligation, got %s", res.Obligation.Status)
	}
	if res.Obligation.LinkedTransactionID != res.Transaction.ID {
		t.Fatal("obligation must link the generated transaction")
	}
	if res.Obligation.PaidDate == nil {
		t.Fatal("expected paid date to be set")
	}
	if res.Transaction.Amount.Cents != 5000 {
		t.Fatalf("zero amount must default to the expected 5000, got %d", res.Transaction.Amount.Cents)
	}
	if res.Transaction.Category != core.ContributionCategory {
		t.Fatalf("expected contribution category, got %q", res.Transaction.Category)
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 5000 {
		t.Fatalf("expected balance 5000, got %d", got.Balance.Cents)
	}
}

func TestRecordPaymentTwiceFails(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	p := RecordPaymentParams{OrganizerID: "juan-perez", Period: "2026-01", AccountID: account.ID}
	if _, err := svc.RecordPayment(ctx, p); err != nil {
		t.Fatalf("first RecordPayment: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, p); !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}

	// The failed second attempt must not touch ledger or balance.
	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected a single transaction, got %d", len(transactions))
	}
	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 5000 {
		t.Fatalf("expected balance 5000, got %d", got.Balance.Cents)
	}
}

func TestRecordPaymentUnknownCell(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "nobody",
		Period:      "2026-01",
		AccountID:   account.ID,
	}); !errors.Is(err, core.ErrObligationNotFound) {
		t.Fatalf("expected ErrObligationNotFound, got %v", err)
	}
	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "juan-perez",
		Period:      "2026-12",
		AccountID:   account.ID,
	}); !errors.Is(err, core.ErrObligationNotFound) {
		t.Fatalf("expected ErrObligationNotFound, got %v", err)
	}
}

func TestSubmitForValidation(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	o, err := svc.SubmitForValidation(ctx, "ana-torres", "2026-01", "https://vouchers/a.jpg")
	if err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if o.Status != core.StatusValidating || o.VoucherURL != "https://vouchers/a.jpg" {
		t.Fatalf("unexpected obligation after submit: %+v", o)
	}

	// Resubmitting while validating refreshes the voucher.
	o, err = svc.SubmitForValidation(ctx, "ana-torres", "2026-01", "https://vouchers/b.jpg")
	if err != nil {
		t.Fatalf("second SubmitForValidation: %v", err)
	}
	if o.VoucherURL != "https://vouchers/b.jpg" {
		t.Fatalf("expected refreshed voucher, got %q", o.VoucherURL)
	}

	if _, err := svc.SubmitForValidation(ctx, "ana-torres", "2026-01", ""); !errors.Is(err, core.ErrMissingVoucher) {
		t.Fatalf("expected ErrMissingVoucher, got %v", err)
	}

	// A validating obligation can still be settled.
	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "ana-torres",
		Period:      "2026-01",
		AccountID:   account.ID,
	}); err != nil {
		t.Fatalf("RecordPayment over validating: %v", err)
	}
	if _, err := svc.SubmitForValidation(ctx, "ana-torres", "2026-01", "https://vouchers/c.jpg"); !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid on settled obligation, got %v", err)
	}
}

func TestDeleteTransactionRevertsObligation(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	res, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "juan-perez",
		Period:      "2026-02",
		AccountID:   account.ID,
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	if err := svc.DeleteTransaction(ctx, res.Transaction.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	obligations, err := svc.ObligationsForOrganizer(ctx, "juan-perez")
	if err != nil {
		t.Fatalf("ObligationsForOrganizer: %v", err)
	}
	for _, o := range obligations {
		if o.Period != "2026-02" {
			continue
		}
		if o.Status != core.StatusPending {
			t.Fatalf("expected reverted obligation, got %s", o.Status)
		}
		if o.LinkedTransactionID != "" || o.PaidDate != nil {
			t.Fatalf("expected unlinked obligation, got %+v", o)
		}
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 0 {
		t.Fatalf("expected balance back to 0, got %d", got.Balance.Cents)
	}
}

func TestFineLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	fine, err := svc.CreateFine(ctx, NewFine{
		OrganizerID:   "juan-perez",
		OrganizerName: "Juan Perez",
		Description:   "Missed assembly",
		Amount:        core.Money{Cents: 2500},
	})
	if err != nil {
		t.Fatalf("CreateFine: %v", err)
	}
	if fine.Status != core.StatusPending {
		t.Fatalf("expected pending fine, got %s", fine.Status)
	}

	res, err := svc.PayFine(ctx, PayFineParams{FineID: fine.ID, AccountID: account.ID})
	if err != nil {
		t.Fatalf("PayFine: %v", err)
	}
	if res.Fine.Status != core.StatusPaid || res.Fine.LinkedTransactionID != res.Transaction.ID {
		t.Fatalf("unexpected fine after payment: %+v", res.Fine)
	}
	if res.Transaction.Category != core.FineCategory {
		t.Fatalf("expected fine category, got %q", res.Transaction.Category)
	}

	if _, err := svc.PayFine(ctx, PayFineParams{FineID: fine.ID, AccountID: account.ID}); !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if _, err := svc.PayFine(ctx, PayFineParams{FineID: "missing", AccountID: account.ID}); !errors.Is(err, core.ErrFineNotFound) {
		t.Fatalf("expected ErrFineNotFound, got %v", err)
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 2500 {
		t.Fatalf("expected balance 2500, got %d", got.Balance.Cents)
	}
}

func TestCombinedSettlement(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	fine, err := svc.CreateFine(ctx, NewFine{
		OrganizerID:   "maria-lopez",
		OrganizerName: "Maria Lopez",
		Description:   "Late report",
		Amount:        core.Money{Cents: 1500},
	})
	if err != nil {
		t.Fatalf("CreateFine: %v", err)
	}

	res, err := svc.Settle(ctx, CombinedSettlement{
		OrganizerID: "maria-lopez",
		Periods:     []string{"2026-01", "2026-02"},
		FineID:      fine.ID,
		AccountID:   account.ID,
		VoucherURL:  "https://vouchers/combined.pdf",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if res.Total.Cents != 2*5000+1500 {
		t.Fatalf("expected total 11500, got %d", res.Total.Cents)
	}
	if res.MonthsTransaction == nil || res.MonthsTransaction.Amount.Cents != 10000 {
		t.Fatalf("expected a 10000 months transaction, got %+v", res.MonthsTransaction)
	}
	if res.FineTransaction == nil || res.FineTransaction.Amount.Cents != 1500 {
		t.Fatalf("expected a 1500 fine transaction, got %+v", res.FineTransaction)
	}
	if len(res.Obligations) != 2 {
		t.Fatalf("expected 2 settled obligations, got %d", len(res.Obligations))
	}
	for _, o := range res.Obligations {
		if o.Status != core.StatusPaid || o.LinkedTransactionID != res.MonthsTransaction.ID {
			t.Fatalf("months must share one transaction, got %+v", o)
		}
	}
	if res.Fine == nil || res.Fine.Status != core.StatusPaid {
		t.Fatalf("expected paid fine, got %+v", res.Fine)
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 11500 {
		t.Fatalf("expected balance 11500, got %d", got.Balance.Cents)
	}
	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions (months + fine), got %d", len(transactions))
	}
}

func TestCombinedSettlementAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "maria-lopez",
		Period:      "2026-02",
		AccountID:   account.ID,
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	before, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}

	// The second period is already settled, so the whole batch must fail.
	_, err = svc.Settle(ctx, CombinedSettlement{
		OrganizerID: "maria-lopez",
		Periods:     []string{"2026-01", "2026-02"},
		AccountID:   account.ID,
		VoucherURL:  "https://vouchers/x.jpg",
	})
	if !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}

	obligations, err := svc.ObligationsForOrganizer(ctx, "maria-lopez")
	if err != nil {
		t.Fatalf("ObligationsForOrganizer: %v", err)
	}
	for _, o := range obligations {
		if o.Period == "2026-01" && o.Status != core.StatusPending {
			t.Fatalf("failed settlement must leave January pending, got %s", o.Status)
		}
	}
	after, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if after.Balance.Cents != before.Balance.Cents {
		t.Fatalf("failed settlement must not move the balance: %d vs %d", after.Balance.Cents, before.Balance.Cents)
	}
}

func TestCombinedSettlementDeduplicatesPeriods(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	res, err := svc.Settle(ctx, CombinedSettlement{
		OrganizerID: "maria-lopez",
		Periods:     []string{"2026-01", "2026-01"},
		AccountID:   account.ID,
		VoucherURL:  "https://vouchers/jan.jpg",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// One cell owed 5000; listing it twice must settle and charge it once.
	if len(res.Obligations) != 1 {
		t.Fatalf("expected 1 settled obligation, got %d", len(res.Obligations))
	}
	if res.MonthsTransaction == nil || res.MonthsTransaction.Amount.Cents != 5000 {
		t.Fatalf("expected a 5000 months transaction, got %+v", res.MonthsTransaction)
	}
	if res.Total.Cents != 5000 {
		t.Fatalf("expected total 5000, got %d", res.Total.Cents)
	}

	got, err := svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance.Cents != 5000 {
		t.Fatalf("expected balance 5000, got %d", got.Balance.Cents)
	}
}

func TestCombinedSettlementRejectsForeignFine(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	fine, err := svc.CreateFine(ctx, NewFine{
		OrganizerID:   "juan-perez",
		OrganizerName: "Juan Perez",
		Description:   "Missed assembly",
		Amount:        core.Money{Cents: 2000},
	})
	if err != nil {
		t.Fatalf("CreateFine: %v", err)
	}

	_, err = svc.Settle(ctx, CombinedSettlement{
		OrganizerID: "maria-lopez",
		Periods:     []string{"2026-01"},
		FineID:      fine.ID,
		AccountID:   account.ID,
		VoucherURL:  "https://vouchers/x.jpg",
	})
	if !errors.Is(err, core.ErrFineNotFound) {
		t.Fatalf("expected ErrFineNotFound for another organizer's fine, got %v", err)
	}

	obligations, err := svc.ObligationsForOrganizer(ctx, "maria-lopez")
	if err != nil {
		t.Fatalf("ObligationsForOrganizer: %v", err)
	}
	for _, o := range obligations {
		if o.Period == "2026-01" && o.Status != core.StatusPending {
			t.Fatalf("rejected settlement must leave the month pending, got %s", o.Status)
		}
	}
}

func TestCombinedSettlementRequiresVoucher(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	_, err := svc.Settle(ctx, CombinedSettlement{
		OrganizerID: "maria-lopez",
		Periods:     []string{"2026-01"},
		AccountID:   account.ID,
	})
	if !errors.Is(err, core.ErrMissingVoucher) {
		t.Fatalf("expected ErrMissingVoucher, got %v", err)
	}
}

func TestBudgetExecutionThresholds(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := svc.SetBudgetLine(ctx, "Catering", core.Money{Cents: 100000}); err != nil {
		t.Fatalf("SetBudgetLine: %v", err)
	}
	if _, err := svc.RecordTransaction(ctx, NewTransaction{
		AccountID:   account.ID,
		Amount:      core.Money{Cents: -85000},
		Category:    "Catering",
		Description: "Banquet deposit",
	}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	rows, err := svc.BudgetExecution(ctx)
	if err != nil {
		t.Fatalf("BudgetExecution: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 execution row, got %d", len(rows))
	}
	if rows[0].Percentage != 85 || rows[0].Status != core.ExecutionAlert {
		t.Fatalf("expected 85%% alert, got %+v", rows[0])
	}

	if _, err := svc.RecordTransaction(ctx, NewTransaction{
		AccountID:   account.ID,
		Amount:      core.Money{Cents: -16000},
		Category:    "Catering",
		Description: "Banquet balance",
	}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	rows, err = svc.BudgetExecution(ctx)
	if err != nil {
		t.Fatalf("BudgetExecution: %v", err)
	}
	if rows[0].Status != core.ExecutionExceeded {
		t.Fatalf("expected exceeded status, got %+v", rows[0])
	}

	categories, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(categories) != 1 || categories[0] != "Catering" {
		t.Fatalf("expected registered category, got %v", categories)
	}
}

func TestOrganizerStatement(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "juan-perez",
		Period:      "2026-01",
		AccountID:   account.ID,
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if _, err := svc.SubmitForValidation(ctx, "juan-perez", "2026-02", "https://vouchers/feb.jpg"); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if _, err := svc.CreateFine(ctx, NewFine{
		OrganizerID:   "juan-perez",
		OrganizerName: "Juan Perez",
		Description:   "Missed assembly",
		Amount:        core.Money{Cents: 2000},
	}); err != nil {
		t.Fatalf("CreateFine: %v", err)
	}

	st, err := svc.OrganizerStatement(ctx, "juan-perez")
	if err != nil {
		t.Fatalf("OrganizerStatement: %v", err)
	}
	if st.OrganizerName != "Juan Perez" {
		t.Fatalf("unexpected organizer name %q", st.OrganizerName)
	}
	if st.Paid.Cents != 5000 {
		t.Fatalf("expected paid 5000, got %d", st.Paid.Cents)
	}
	if st.Validating.Cents != 5000 {
		t.Fatalf("expected validating 5000, got %d", st.Validating.Cents)
	}
	if st.Pending.Cents != 5000+2000 {
		t.Fatalf("expected pending 7000 (March plus fine), got %d", st.Pending.Cents)
	}

	if _, err := svc.OrganizerStatement(ctx, "nobody"); !errors.Is(err, core.ErrObligationNotFound) {
		t.Fatalf("expected ErrObligationNotFound, got %v", err)
	}
}

func TestBuildReport(t *testing.T) {
	ctx := context.Background()
	svc, account := newPlannedService(t)

	if _, err := svc.RecordPayment(ctx, RecordPaymentParams{
		OrganizerID: "maria-lopez",
		Period:      "2026-01",
		AccountID:   account.ID,
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if _, err := svc.SubmitForValidation(ctx, "ana-torres", "2026-01", "https://vouchers/a.jpg"); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if _, err := svc.CreateFine(ctx, NewFine{
		OrganizerID:   "ana-torres",
		OrganizerName: "Ana Torres",
		Description:   "Late report",
		Amount:        core.Money{Cents: 3000},
	}); err != nil {
		t.Fatalf("CreateFine: %v", err)
	}

	r, err := svc.BuildReport(ctx)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if r.TotalBalance.Cents != 5000 {
		t.Fatalf("expected total balance 5000, got %d", r.TotalBalance.Cents)
	}
	if r.ObligationsPaid != 1 || r.ObligationsValidating != 1 || r.ObligationsPending != 7 {
		t.Fatalf("unexpected obligation counts: paid=%d validating=%d pending=%d",
			r.ObligationsPaid, r.ObligationsValidating, r.ObligationsPending)
	}
	if r.FinesOutstanding.Cents != 3000 {
		t.Fatalf("expected 3000 outstanding fines, got %d", r.FinesOutstanding.Cents)
	}
	if len(r.Execution) == 0 {
		t.Fatal("expected budget execution rows in the report")
	}
}

type captureNotifier struct {
	changes []notify.Change
}

func (c *captureNotifier) Notify(_ context.Context, change notify.Change) {
	c.changes = append(c.changes, change)
}

func TestMutationsEmitChanges(t *testing.T) {
	ctx := context.Background()
	capture := &captureNotifier{}
	svc := New(memory.New(), testRoster(), capture)

	account, err := svc.CreateAccount(ctx, "Main Fund", "bank")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := svc.RecordTransaction(ctx, NewTransaction{
		AccountID:   account.ID,
		Amount:      core.Money{Cents: 100},
		Category:    "Donations",
		Description: "x",
	}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	if len(capture.changes) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(capture.changes))
	}
	first := capture.changes[0]
	if first.Entity != notify.EntityAccount || first.Action != notify.ActionCreated || first.ID != account.ID {
		t.Fatalf("unexpected first change: %+v", first)
	}
	if capture.changes[1].Entity != notify.EntityTransaction {
		t.Fatalf("unexpected second change: %+v", capture.changes[1])
	}
}
