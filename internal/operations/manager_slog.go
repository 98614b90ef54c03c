package operations

import (
	"context"
	"log/slog"
	"time"

	"mpxreport/internal/infrastructure"
)

// logOperationStart logs the start of a pipeline run
func (m *Manager) logOperationStart(ctx context.Context, req OperationRequest) {
	formats := make([]string, len(req.Formats))
	for i, f := range req.Formats {
		formats[i] = string(f)
	}
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", req.ID),
		slog.String("source", req.Source),
		slog.Any("formats", formats),
		slog.String("run_date", req.RunDate.Format(time.DateOnly)))
}

// logOperationComplete logs the completion of a pipeline run
func (m *Manager) logOperationComplete(ctx context.Context, operationID string, duration time.Duration, status string) {
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("operation_id", operationID),
		slog.String("status", status),
		slog.Duration("duration", duration))
}

// logOperationError logs a pipeline error
func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	infrastructure.WithError(m.logger, err).ErrorContext(ctx, "operation_error",
		slog.String("operation_id", operationID),
		slog.String("error_type", string(GetErrorType(err))))
}

// logStepStart logs the start of a step attempt
func (m *Manager) logStepStart(ctx context.Context, operationID, stepID string, attempt int) {
	m.logger.DebugContext(ctx, "step_start",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.Int("attempt", attempt))
}

// logStepComplete logs the completion of a step
func (m *Manager) logStepComplete(ctx context.Context, operationID, stepID string, duration time.Duration) {
	m.logger.InfoContext(ctx, "step_complete",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.Duration("duration", duration))
}

// logStepError logs a step error
func (m *Manager) logStepError(ctx context.Context, operationID, stepID string, err error) {
	infrastructure.WithError(m.logger, err).ErrorContext(ctx, "step_error",
		slog.String("operation_id", operationID),
		slog.String("step", stepID))
}
