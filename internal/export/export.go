// Package export publishes treasury report snapshots to an external
// destination the committee can read without the portal.
package export

import (
	"context"

	"tesoreria/internal/treasury"
)

// ReportExporter replaces the published report with a fresh snapshot.
type ReportExporter interface {
	ExportReport(ctx context.Context, r *treasury.Report) error
}
