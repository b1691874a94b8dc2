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

// NewFine describes a penalty charge to register against an organizer.
type NewFine struct {
	OrganizerID   string
	OrganizerName string
	Description   string
	Amount        core.Money
	DueDate       time.Time
}

// CreateFine registers a pending fine.
func (s *Service) CreateFine(ctx context.Context, p NewFine) (core.Fine, error) {
	fines, rev, err := s.loadFines(ctx)
	if err != nil {
		return core.Fine{}, err
	}

	fine := core.Fine{
		ID:            uuid.NewString(),
		OrganizerID:   p.OrganizerID,
		OrganizerName: p.OrganizerName,
		Description:   p.Description,
		Amount:        p.Amount,
		DueDate:       p.DueDate,
		Status:        core.StatusPending,
	}
	if err := fine.Validate(); err != nil {
		return core.Fine{}, err
	}

	fines = append(fines, fine)
	if err := s.store.Apply(ctx, store.Write{Collection: store.Fines, Rev: rev, Value: fines}); err != nil {
		return core.Fine{}, fmt.Errorf("persist fine: %w", err)
	}

	slog.InfoContext(ctx, "Fine created",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldFineID, fine.ID,
		log.FieldOrganizerID, fine.OrganizerID,
		log.FieldAmountCents, fine.Amount.Cents)
	s.notify(ctx, notify.EntityFine, notify.ActionCreated, fine.ID)
	return fine, nil
}

// PayFineParams identifies a fine and how it is settled.
type PayFineParams struct {
	FineID     string
	AccountID  string
	VoucherURL string
}

// FinePaymentResult links the settled fine to its generated transaction.
type FinePaymentResult struct {
	Fine        core.Fine
	Transaction core.Transaction
}

// PayFine settles a fine: income transaction in the fine category plus the
// status transition, in one atomic apply. Paying a settled fine fails with
// ErrAlreadyPaid.
func (s *Service) PayFine(ctx context.Context, p PayFineParams) (FinePaymentResult, error) {
	fines, finesRev, err := s.loadFines(ctx)
	if err != nil {
		return FinePaymentResult{}, err
	}
	fi := fineIndex(fines, p.FineID)
	if fi < 0 {
		return FinePaymentResult{}, core.ErrFineNotFound
	}
	if fines[fi].Status.Settled() {
		return FinePaymentResult{}, core.ErrAlreadyPaid
	}

	accounts, accountsRev, err := s.loadAccounts(ctx)
	if err != nil {
		return FinePaymentResult{}, err
	}
	transactions, txRev, err := s.loadTransactions(ctx)
	if err != nil {
		return FinePaymentResult{}, err
	}

	tx, err := appendEntry(accounts, &transactions, NewTransaction{
		AccountID:   p.AccountID,
		Amount:      fines[fi].Amount,
		Category:    core.FineCategory,
		Description: fmt.Sprintf("Fine - %s (%s)", fines[fi].OrganizerName, fines[fi].Description),
		VoucherURL:  p.VoucherURL,
	})
	if err != nil {
		return FinePaymentResult{}, err
	}

	settleFine(&fines[fi], tx.ID)

	err = s.store.Apply(ctx,
		store.Write{Collection: store.Fines, Rev: finesRev, Value: fines},
		store.Write{Collection: store.Transactions, Rev: txRev, Value: transactions},
		store.Write{Collection: store.Accounts, Rev: accountsRev, Value: accounts},
	)
	if err != nil {
		return FinePaymentResult{}, fmt.Errorf("persist fine payment: %w", err)
	}

	slog.InfoContext(ctx, "Fine paid",
		log.FieldComponent, log.ComponentTreasury,
		log.FieldOperation, log.OpSettle,
		log.FieldFineID, p.FineID,
		log.FieldTransactionID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents)
	s.notify(ctx, notify.EntityFine, notify.ActionPaid, p.FineID)
	return FinePaymentResult{Fine: fines[fi], Transaction: tx}, nil
}

// Fines returns all registered fines.
func (s *Service) Fines(ctx context.Context) ([]core.Fine, error) {
	fines, _, err := s.loadFines(ctx)
	return fines, err
}

// FinesForOrganizer returns one organizer's fines.
func (s *Service) FinesForOrganizer(ctx context.Context, organizerID string) ([]core.Fine, error) {
	fines, _, err := s.loadFines(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Fine
	for _, f := range fines {
		if f.OrganizerID == organizerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func fineIndex(fines []core.Fine, id string) int {
	for i, f := range fines {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func settleFine(f *core.Fine, txID string) {
	now := time.Now().UTC()
	f.Status = core.StatusPaid
	f.LinkedTransactionID = txID
	f.PaidDate = &now
}
