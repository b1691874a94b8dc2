package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldOrganizerID   = "organizer_id"
	FieldPeriod        = "period"
	FieldFineID        = "fine_id"
	FieldCategory      = "category"
	FieldAmountCents   = "amount_cents"
	FieldVoucherURL    = "voucher_url"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentTreasury = "treasury"
	ComponentPayment  = "payment"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpGenerate = "generate"
	OpSettle   = "settle"
	OpExport   = "export"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithObligation adds contribution cell fields
func (f LogFields) WithObligation(organizerID, period string, amountCents int64) LogFields {
	f[FieldOrganizerID] = organizerID
	f[FieldPeriod] = period
	f[FieldAmountCents] = amountCents
	return f
}

// WithTransaction adds ledger record fields
func (f LogFields) WithTransaction(id, accountID, category string, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldAccountID] = accountID
	f[FieldCategory] = category
	f[FieldAmountCents] = amountCents
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
