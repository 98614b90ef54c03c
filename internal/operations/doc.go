// Package operations runs the report pipeline as an ordered list of steps.
//
// Core components:
//
// Manager: runs the registered steps one after another for each
// OperationRequest, tracking per-step state and timings, retrying steps
// that fail with a retryable error, and stopping at the first failure.
//
// Step: a single unit of work. Steps exchange data through the
// OperationState context map.
//
// Registry: keeps steps in registration order.
//
// OperationTracer: wraps runs and steps in OpenTelemetry spans and records
// the pipeline metrics.
//
// The report pipeline is built by NewReportSteps:
//
//	fetch -> load -> normalize -> categorize -> aggregate -> export
//
// Example usage:
//
//	registry := operations.NewRegistry()
//	for _, step := range operations.NewReportSteps(deps) {
//		registry.Register(step)
//	}
//	manager := operations.NewManager(registry, operations.NewConfig(), tracer, logger)
//	resp, err := manager.Execute(ctx, operations.OperationRequest{
//		Source:  "latest.csv",
//		Formats: []domain.ReportFormat{domain.ReportFormatExcel},
//	})
package operations
