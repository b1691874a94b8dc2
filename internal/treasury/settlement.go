package treasury

import (
	"context"
	"fmt"
	"log/slog"

	"tesoreria/internal/core"
	"tesoreria/internal/log"
	"tesoreria/internal/notify"
	"tesoreria/internal/store"
)

// CombinedSettlement settles one voucher covering a run of months and
// optionally one fine for the same organizer.
type CombinedSettlement struct {
	OrganizerID string
	Periods     []string
	FineID      string
	AccountID   string
	VoucherURL  string
}

// SettlementResult reports what one combined voucher produced. The months
// share a single transaction (the voucher covers them together); the fine,
// when present, gets its own.
type SettlementResult struct {
	Obligations       []core.Obligation
	MonthsTransaction *core.Transaction
	Fine              *core.Fine
	FineTransaction   *core.Transaction
	Total             core.Money
}

// Settle commits a combined voucher in one atomic apply: every selected
// month transitions to paid linked to the shared months transaction, the
// fine (if any) transitions to paid linked to its own transaction, and the
// account balance absorbs both. There is no partial success: any failure
// leaves every collection exactly as it was.
func (s *Service) Settle(ctx context.Context, p CombinedSettlement) (SettlementResult, error) {
	if p.VoucherURL == "" {
		return SettlementResult{}, core.ErrMissingVoucher
	}
	if len(p.Periods) == 0 && p.FineID == "" {
		return SettlementResult{}, core.ErrObligationNotFound
	}

	plan, planRev, err := s.loadPlan(ctx)
	if err != nil {
		return SettlementResult{}, err
	}
	fines, finesRev, err := s.loadFines(ctx)
	if err != nil {
		return SettlementResult{}, err
	}
	accounts, accountsRev, err := s.loadAccounts(ctx)
	if err != nil {
		return SettlementResult{}, err
	}
	transactions, txRev, err := s.loadTransactions(ctx)
	if err != nil {
		return SettlementResult{}, err
	}

	var result SettlementResult

	// Resolve and validate everything before touching any state. A period
	// listed twice settles once and is charged once.
	indexes := make([]int, 0, len(p.Periods))
	seen := make(map[string]struct{}, len(p.Periods))
	var monthsTotal core.Money
	var firstLabel, lastLabel, organizerName string
	for _, period := range p.Periods {
		if _, dup := seen[period]; dup {
			continue
		}
		seen[period] = struct{}{}
		oi := obligationIndex(plan, p.OrganizerID, period)
		if oi < 0 {
			return SettlementResult{}, core.ErrObligationNotFound
		}
		if plan[oi].Status.Settled() {
			return SettlementResult{}, core.ErrAlreadyPaid
		}
		indexes = append(indexes, oi)
		monthsTotal = monthsTotal.Add(plan[oi].Expected)
		if firstLabel == "" {
			firstLabel = plan[oi].PeriodLabel
		}
		lastLabel = plan[oi].PeriodLabel
		organizerName = plan[oi].OrganizerName
	}

	fi := -1
	if p.FineID != "" {
		fi = fineIndex(fines, p.FineID)
		if fi < 0 || fines[fi].OrganizerID != p.OrganizerID {
			return SettlementResult{}, core.ErrFineNotFound
		}
		if fines[fi].Status.Settled() {
			return SettlementResult{}, core.ErrAlreadyPaid
		}
	}

	if len(indexes) > 0 {
		desc := fmt.Sprintf("Contributions %s - %s", firstLabel, organizerName)
		if lastLabel != firstLabel {
			desc = fmt.Sprintf("Contributions %s to %s - %s", firstLabel, lastLabel, organizerName)
		}
		tx, err := appendEntry(accounts, &transactions, NewTransaction{
			AccountID:   p.AccountID,
			Amount:      monthsTotal,
			Category:    core.ContributionCategory,
			Description: desc,
			VoucherURL:  p.VoucherURL,
		})
		if err != nil {
			return SettlementResult{}, err
		}
		for _, oi := range indexes {
			settleObligation(&plan[oi], tx.ID, p.VoucherURL)
			result.Obligations = append(result.Obligations, plan[oi])
		}
		result.MonthsTransaction = &tx
		result.Total = result.Total.Add(monthsTotal)
	}

	if fi >= 0 {
		tx, err := appendEntry(accounts, &transactions, NewTransaction{
			AccountID:   p.AccountID,
			Amount:      fines[fi].Amount,
			Category:    core.FineCategory,
			Description: fmt.Sprintf("Fine - %s (%s)", fines[fi].OrganizerName, fines[fi].Description),
			VoucherURL:  p.VoucherURL,
		})
		if err != nil {
			return SettlementResult{}, err
		}
		settleFine(&fines[fi], tx.ID)
		result.Fine = &fines[fi]
		result.FineTransaction = &tx
		result.Total = result.Total.Add(fines[fi].Amount)
	}

	writes := []store.Write{
		{Collection: store.Transactions, Rev: txRev, Value: transactions},
		{Collection: store.Accounts, Rev: accountsRev, Value: accounts},
	}
	if len(indexes) > 0 {
		writes = append(writes, store.Write{Collection: store.Plan, Rev: planRev, Value: plan})
	}
	if fi >= 0 {
		writes = append(writes, store.Write{Collection: store.Fines, Rev: finesRev, Value: fines})
	}
	if err := s.store.Apply(ctx, writes...); err != nil {
		return SettlementResult{}, fmt.Errorf("persist combined settlement: %w", err)
	}

	slog.InfoContext(ctx, "Combined settlement committed",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpSettle,
		log.FieldOrganizerID, p.OrganizerID,
		"months", len(indexes),
		"fine", p.FineID != "",
		"total_cents", result.Total.Cents)
	for _, o := range result.Obligations {
		s.notify(ctx, notify.EntityObligation, notify.ActionPaid, o.ID)
	}
	if result.Fine != nil {
		s.notify(ctx, notify.EntityFine, notify.ActionPaid, result.Fine.ID)
	}
	return result, nil
}
