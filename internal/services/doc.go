// Package services implements the business logic shared by the CLI and the
// HTTP surface.
//
// ReportService runs the report pipeline and assembles a ReportResult from
// the final operation state. At most one report run is active at a time; a
// second caller receives ErrOperationRunning instead of queueing behind the
// first. It also lists and resolves previously generated report files.
//
// HealthService reports liveness, build information and whether the report
// directory is usable.
//
// Services take their collaborators through constructors and log through
// the injected *slog.Logger.
package services
