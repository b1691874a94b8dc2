package treasury

import (
	"context"

	"tesoreria/internal/core"
)

// Statement is one organizer's standing: their obligations, fines and the
// totals still owed versus already settled.
type Statement struct {
	OrganizerID   string
	OrganizerName string
	Obligations   []core.Obligation
	Fines         []core.Fine
	Pending       core.Money
	Validating    core.Money
	Paid          core.Money
}

// OrganizerStatement assembles the statement for one organizer from the
// current plan and fine list.
func (s *Service) OrganizerStatement(ctx context.Context, organizerID string) (Statement, error) {
	obligations, err := s.ObligationsForOrganizer(ctx, organizerID)
	if err != nil {
		return Statement{}, err
	}
	fines, err := s.FinesForOrganizer(ctx, organizerID)
	if err != nil {
		return Statement{}, err
	}
	if len(obligations) == 0 && len(fines) == 0 {
		return Statement{}, core.ErrObligationNotFound
	}

	st := Statement{
		OrganizerID: organizerID,
		Obligations: obligations,
		Fines:       fines,
	}
	for _, o := range obligations {
		if st.OrganizerName == "" {
			st.OrganizerName = o.OrganizerName
		}
		st.add(o.Status, o.Expected)
	}
	for _, f := range fines {
		if st.OrganizerName == "" {
			st.OrganizerName = f.OrganizerName
		}
		st.add(f.Status, f.Amount)
	}
	return st, nil
}

func (st *Statement) add(status core.PaymentStatus, amount core.Money) {
	switch status {
	case core.StatusPaid:
		st.Paid = st.Paid.Add(amount)
	case core.StatusValidating:
		st.Validating = st.Validating.Add(amount)
	default:
		st.Pending = st.Pending.Add(amount)
	}
}
