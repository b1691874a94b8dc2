// Package google exports the treasury report to a Google Sheets
// spreadsheet shared with the committee.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tesoreria/internal/export"
	"tesoreria/internal/log"
	"tesoreria/internal/treasury"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportSheet   string
}

var _ export.ReportExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials in
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: REPORT_SHEET_NAME (default
// "Treasury").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	reportSheet := strings.TrimSpace(os.Getenv("REPORT_SHEET_NAME"))
	if reportSheet == "" {
		reportSheet = "Treasury"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportSheet:   reportSheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportReport clears the report sheet and rewrites it from the snapshot:
// account balances, budget execution and the contribution matrix standing.
func (c *Client) ExportReport(ctx context.Context, r *treasury.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows := reportRows(r)

	clearRange := fmt.Sprintf("%s!A:E", c.reportSheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear report sheet %s: %w", c.reportSheet, err)
	}

	writeRange := fmt.Sprintf("%s!A1:E%d", c.reportSheet, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write report sheet %s: %w", c.reportSheet, err)
	}

	slog.InfoContext(ctx, "Treasury report exported",
		log.FieldComponent, log.ComponentSheets,
		log.FieldOperation, log.OpExport,
		log.FieldSheetsRef, c.reportSheet,
		"rows", len(rows))
	return nil
}

func reportRows(r *treasury.Report) [][]any {
	rows := [][]any{
		{"Treasury report", r.GeneratedAt.Format("2006-01-02 15:04")},
		{},
		{"Accounts", "", "Balance"},
	}
	for _, a := range r.Accounts {
		rows = append(rows, []any{a.Name, a.Type, a.Balance.Units()})
	}
	rows = append(rows,
		[]any{"Total", "", r.TotalBalance.Units()},
		[]any{},
		[]any{"Budget execution", "Budgeted", "Executed", "%", "Status"},
	)
	for _, e := range r.Execution {
		rows = append(rows, []any{
			e.Category, e.Budgeted.Units(), e.Executed.Units(),
			fmt.Sprintf("%.1f", e.Percentage), string(e.Status),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Contributions", "paid", r.ObligationsPaid, "validating", r.ObligationsValidating},
		[]any{"", "pending", r.ObligationsPending, "fines outstanding", r.FinesOutstanding.Units()},
		[]any{},
		[]any{"Organizer", "Period", "Amount", "Status", "Deadline"},
	)
	for _, o := range r.Obligations {
		rows = append(rows, []any{
			o.OrganizerName, o.PeriodLabel, o.Expected.Units(),
			string(o.Status), o.Deadline.Format("2006-01-02"),
		})
	}
	return rows
}
