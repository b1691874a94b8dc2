package core

import (
	"errors"
	"strings"
	"time"
)

// PaymentStatus tracks the lifecycle of an obligation or a fine.
const (
	StatusPending    PaymentStatus = "pending"
	StatusValidating PaymentStatus = "validating"
	StatusPaid       PaymentStatus = "paid"
)

// ContributionCategory is the spending category used for all contribution
// payments. Its budget line is recomputed on every plan generation.
const ContributionCategory = "Contributions"

// FineCategory is the spending category used for fine settlements.
const FineCategory = "Fines"

type (
	PaymentStatus string

	// Account is a financial account whose balance is the signed sum of all
	// transactions referencing it.
	Account struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Type      string    `json:"type"`
		Balance   Money     `json:"current_balance"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// Transaction is an immutable ledger record. Amount is signed: positive
	// for income, negative for expense. Deleting a transaction reverses its
	// balance effect exactly.
	Transaction struct {
		ID          string    `json:"id"`
		Date        time.Time `json:"date"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		AccountID   string    `json:"account_id"`
		VoucherURL  string    `json:"voucher_url,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Obligation is one organizer's expected contribution for one period.
	Obligation struct {
		ID                  string        `json:"id"`
		OrganizerID         string        `json:"organizer_id"`
		OrganizerName       string        `json:"organizer_name"`
		OrganizerRole       string        `json:"organizer_role"`
		Period              string        `json:"period"`
		PeriodLabel         string        `json:"period_label"`
		Expected            Money         `json:"expected_amount"`
		Status              PaymentStatus `json:"status"`
		LinkedTransactionID string        `json:"linked_transaction_id,omitempty"`
		VoucherURL          string        `json:"voucher_url,omitempty"`
		Deadline            time.Time     `json:"deadline"`
		PaidDate            *time.Time    `json:"paid_date,omitempty"`
	}

	// Fine is a penalty charge independent of the periodic schedule. It
	// follows the same payment contract as an obligation.
	Fine struct {
		ID                  string        `json:"id"`
		OrganizerID         string        `json:"organizer_id"`
		OrganizerName       string        `json:"organizer_name"`
		Description         string        `json:"description"`
		Amount              Money         `json:"amount"`
		DueDate             time.Time     `json:"due_date"`
		Status              PaymentStatus `json:"status"`
		LinkedTransactionID string        `json:"linked_transaction_id,omitempty"`
		PaidDate            *time.Time    `json:"paid_date,omitempty"`
	}

	// BudgetLine is the planned amount for one spending category.
	BudgetLine struct {
		Category string `json:"category"`
		Budgeted Money  `json:"budgeted_amount"`
	}

	// Period is one configured billing interval.
	Period struct {
		ID       string    `json:"id"`
		Label    string    `json:"label"`
		Deadline time.Time `json:"deadline"`
	}

	// TreasuryConfig drives plan generation and payment defaults. Changes
	// take effect on the next plan generation, not retroactively.
	TreasuryConfig struct {
		MonthlyAmount Money    `json:"monthly_amount"`
		Periods       []Period `json:"periods"`
	}
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrObligationNotFound  = errors.New("obligation not found")
	ErrFineNotFound        = errors.New("fine not found")
	ErrAlreadyPaid         = errors.New("already paid")
	ErrHasTransactions     = errors.New("account has transactions")
	ErrPlanHasPayments     = errors.New("contribution plan has paid obligations")
	ErrOutOfSequence       = errors.New("period selected out of sequence")
	ErrMissingVoucher      = errors.New("missing voucher")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyName           = errors.New("empty name")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyCategory       = errors.New("empty category")
	ErrNoPeriods           = errors.New("no periods configured")
	ErrEmptyRoster         = errors.New("empty roster")
)

// Settled reports whether the status no longer accepts payments.
func (s PaymentStatus) Settled() bool {
	return s == StatusPaid
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusValidating, StatusPaid:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 120 {
		return errors.New("account name too long (max 120 characters)")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.AccountID == "" {
		return ErrAccountNotFound
	}
	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	return nil
}

func (f Fine) Validate() error {
	if f.OrganizerID == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(f.Description) == "" {
		return ErrEmptyDescription
	}
	if f.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c TreasuryConfig) Validate() error {
	if c.MonthlyAmount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if len(c.Periods) == 0 {
		return ErrNoPeriods
	}
	seen := make(map[string]struct{}, len(c.Periods))
	for _, p := range c.Periods {
		if strings.TrimSpace(p.ID) == "" {
			return errors.New("period id cannot be empty")
		}
		if _, dup := seen[p.ID]; dup {
			return errors.New("duplicate period id: " + p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// IsExpense reports whether the transaction records money leaving an account.
func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}
