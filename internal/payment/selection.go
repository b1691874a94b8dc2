// Package payment implements the voucher submission flow: sequential month
// selection, optional fine bundling, the upload step and the final atomic
// settlement.
package payment

import (
	"errors"

	"tesoreria/internal/core"
)

// Flow states of one voucher submission.
const (
	StateIdle            State = "idle"
	StateMonthsSelected  State = "months_selected"
	StateFineSelected    State = "fine_selected"
	StateVoucherAttached State = "voucher_attached"
	StateSubmitting      State = "submitting"
	StateSettled         State = "settled"
	StateFailed          State = "failed"
)

type State string

var (
	ErrWrongOrganizer = errors.New("fine belongs to another organizer")
	ErrNothingToPay   = errors.New("nothing selected to pay")
	ErrNotSubmittable = errors.New("submission already completed")
)

// Selection is the client-held state of one submission: which months are
// ticked, whether a fine rides along, and the voucher once uploaded. Months
// must be selected strictly in order: a period is selectable only when every
// earlier unsettled period is already selected.
type Selection struct {
	organizerID string
	obligations []core.Obligation
	selected    map[string]bool
	fine        *core.Fine
	voucherURL  string
	submitState State // set by the flow once Submit runs; empty before
}

// NewSelection starts an idle selection over one organizer's obligations,
// given in configured period order.
func NewSelection(organizerID string, obligations []core.Obligation) *Selection {
	return &Selection{
		organizerID: organizerID,
		obligations: obligations,
		selected:    make(map[string]bool),
	}
}

// SelectPeriod ticks a period. Out-of-order picks are rejected with
// ErrOutOfSequence rather than silently reordered; settled periods are
// rejected with ErrAlreadyPaid.
func (s *Selection) SelectPeriod(period string) error {
	found := false
	for _, o := range s.obligations {
		if o.Period == period {
			if o.Status.Settled() {
				return core.ErrAlreadyPaid
			}
			found = true
			break
		}
		// every earlier unsettled period must already be ticked
		if !o.Status.Settled() && !s.selected[o.Period] {
			return core.ErrOutOfSequence
		}
	}
	if !found {
		return core.ErrObligationNotFound
	}
	s.selected[period] = true
	return nil
}

// DeselectPeriod unticks a period and cascades to every later selected
// period so the selection stays a prefix of the unsettled months.
func (s *Selection) DeselectPeriod(period string) {
	dropping := false
	for _, o := range s.obligations {
		if o.Period == period {
			dropping = true
		}
		if dropping {
			delete(s.selected, o.Period)
		}
	}
}

// SelectedPeriods returns the ticked periods in configured order.
func (s *Selection) SelectedPeriods() []string {
	var out []string
	for _, o := range s.obligations {
		if s.selected[o.Period] {
			out = append(out, o.Period)
		}
	}
	return out
}

// AttachFine bundles a fine of the same organizer into the voucher.
func (s *Selection) AttachFine(f core.Fine) error {
	if f.OrganizerID != s.organizerID {
		return ErrWrongOrganizer
	}
	if f.Status.Settled() {
		return core.ErrAlreadyPaid
	}
	s.fine = &f
	return nil
}

// ClearFine drops the bundled fine.
func (s *Selection) ClearFine() {
	s.fine = nil
}

// Fine returns the bundled fine, if any.
func (s *Selection) Fine() *core.Fine {
	return s.fine
}

// Total is the voucher amount: selected months plus the bundled fine.
func (s *Selection) Total() core.Money {
	var total core.Money
	for _, o := range s.obligations {
		if s.selected[o.Period] {
			total = total.Add(o.Expected)
		}
	}
	if s.fine != nil {
		total = total.Add(s.fine.Amount)
	}
	return total
}

// VoucherURL returns the uploaded voucher URL, empty before upload.
func (s *Selection) VoucherURL() string {
	return s.voucherURL
}

// State derives where the submission stands.
func (s *Selection) State() State {
	if s.submitState != "" {
		return s.submitState
	}
	switch {
	case s.voucherURL != "":
		return StateVoucherAttached
	case s.fine != nil:
		return StateFineSelected
	case len(s.selected) > 0:
		return StateMonthsSelected
	default:
		return StateIdle
	}
}
