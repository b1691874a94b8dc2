// Package worker refreshes the published treasury report whenever the
// ledger changes.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"tesoreria/internal/export"
	"tesoreria/internal/log"
	"tesoreria/internal/notify"
	"tesoreria/internal/treasury"
)

// ReportBuilder produces the current treasury snapshot.
type ReportBuilder interface {
	BuildReport(ctx context.Context) (*treasury.Report, error)
}

// ExportWorker rebuilds and re-exports the report on every ledger change.
// The report is a full snapshot, so handling a change is idempotent and
// safe under at-least-once delivery.
type ExportWorker struct {
	builder  ReportBuilder
	exporter export.ReportExporter
}

func NewExportWorker(builder ReportBuilder, exporter export.ReportExporter) *ExportWorker {
	return &ExportWorker{builder: builder, exporter: exporter}
}

// HandleChange processes one ledger change message.
func (w *ExportWorker) HandleChange(ctx context.Context, change notify.Change) error {
	slog.InfoContext(ctx, "Processing ledger change",
		log.FieldComponent, log.ComponentWorker,
		"entity", change.Entity,
		"action", change.Action,
		"id", change.ID)
	return w.Refresh(ctx)
}

// Refresh rebuilds the snapshot and replaces the published report.
func (w *ExportWorker) Refresh(ctx context.Context) error {
	report, err := w.builder.BuildReport(ctx)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if err := w.exporter.ExportReport(ctx, report); err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	return nil
}
