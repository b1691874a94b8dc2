package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"tesoreria/internal/core"
	"tesoreria/internal/log"
	"tesoreria/internal/treasury"
	"tesoreria/internal/upload"
)

// MaxVoucherSize caps voucher uploads at 5 MiB.
const MaxVoucherSize = 5 << 20

var (
	ErrVoucherTooLarge = errors.New("voucher file too large")
	ErrVoucherType     = errors.New("unsupported voucher file type")
)

var voucherExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".pdf":  {},
}

// Flow drives one voucher submission end to end: validate and upload the
// voucher, then settle the selected months and fine in a single atomic call.
type Flow struct {
	svc      *treasury.Service
	uploader upload.Uploader
}

func NewFlow(svc *treasury.Service, uploader upload.Uploader) *Flow {
	return &Flow{svc: svc, uploader: uploader}
}

// AttachVoucher validates the file and runs the upload, attaching the
// resulting URL to the selection. No settlement can run before this step
// completes.
func (f *Flow) AttachVoucher(ctx context.Context, sel *Selection, filename string, r io.Reader, size int64) error {
	if size > MaxVoucherSize {
		return fmt.Errorf("%w: %d bytes", ErrVoucherTooLarge, size)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := voucherExtensions[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrVoucherType, ext)
	}

	url, err := f.uploader.Upload(ctx, filename, r)
	if err != nil {
		return fmt.Errorf("upload voucher: %w", err)
	}
	sel.voucherURL = url

	slog.InfoContext(ctx, "Voucher uploaded",
		log.FieldComponent, log.ComponentPayment,
		"filename", filename,
		log.FieldVoucherURL, url)
	return nil
}

// Submit settles the selection against the given account. Months and fine
// are committed all-or-nothing; there is no partial success to report. The
// selection moves to settled or failed and accepts no further submits once
// settled.
func (f *Flow) Submit(ctx context.Context, sel *Selection, accountID string) (treasury.SettlementResult, error) {
	switch sel.State() {
	case StateSettled, StateSubmitting:
		return treasury.SettlementResult{}, ErrNotSubmittable
	}
	if sel.voucherURL == "" {
		return treasury.SettlementResult{}, core.ErrMissingVoucher
	}
	periods := sel.SelectedPeriods()
	if len(periods) == 0 && sel.fine == nil {
		return treasury.SettlementResult{}, ErrNothingToPay
	}

	settlement := treasury.CombinedSettlement{
		OrganizerID: sel.organizerID,
		Periods:     periods,
		AccountID:   accountID,
		VoucherURL:  sel.voucherURL,
	}
	if sel.fine != nil {
		settlement.FineID = sel.fine.ID
	}

	sel.submitState = StateSubmitting
	result, err := f.svc.Settle(ctx, settlement)
	if err != nil {
		sel.submitState = StateFailed
		slog.ErrorContext(ctx, "Voucher submission failed",
			append(log.NewFields().
				WithComponent(log.ComponentPayment).
				WithError(err).
				ToSlice(),
				log.FieldOrganizerID, sel.organizerID,
				"months", len(periods))...)
		return treasury.SettlementResult{}, err
	}

	sel.submitState = StateSettled
	slog.InfoContext(ctx, "Voucher submission settled",
		log.FieldComponent, log.ComponentPayment,
		log.FieldOrganizerID, sel.organizerID,
		"months", len(periods),
		"fine", sel.fine != nil,
		"total_cents", result.Total.Cents)
	return result, nil
}
