package core

// ExecutionStatus classifies how far a category's spend has run against its
// budget line.
const (
	ExecutionNormal   ExecutionStatus = "normal"
	ExecutionAlert    ExecutionStatus = "alert"
	ExecutionExceeded ExecutionStatus = "exceeded"
)

type (
	ExecutionStatus string

	// ExecutionRow is the budget execution of one category: planned amount,
	// actual expense total and the resulting ratio.
	ExecutionRow struct {
		Category   string          `json:"category"`
		Budgeted   Money           `json:"budgeted_amount"`
		Executed   Money           `json:"executed_amount"`
		Percentage float64         `json:"percentage"`
		Status     ExecutionStatus `json:"status"`
	}
)

// ComputeExecution derives spend-to-budget ratios per category from the
// transaction log. Only expense transactions count; the executed amount is
// the sum of their magnitudes. The projection is recomputed in full on every
// call so it is always consistent with the current log.
func ComputeExecution(plan []BudgetLine, transactions []Transaction) []ExecutionRow {
	spent := make(map[string]int64)
	for _, t := range transactions {
		if t.IsExpense() {
			spent[t.Category] += t.Amount.Abs().Cents
		}
	}

	rows := make([]ExecutionRow, 0, len(plan))
	for _, line := range plan {
		row := ExecutionRow{
			Category: line.Category,
			Budgeted: line.Budgeted,
			Executed: Money{Cents: spent[line.Category]},
		}
		if line.Budgeted.Cents > 0 {
			row.Percentage = float64(row.Executed.Cents) / float64(line.Budgeted.Cents) * 100
		}
		switch {
		case row.Percentage > 100:
			row.Status = ExecutionExceeded
		case row.Percentage > 80:
			row.Status = ExecutionAlert
		default:
			row.Status = ExecutionNormal
		}
		rows = append(rows, row)
	}
	return rows
}
