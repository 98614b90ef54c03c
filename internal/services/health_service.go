package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"mpxreport/internal/config"
	"mpxreport/internal/operations"
)

// Health status values
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Paths
	operation *operations.Manager
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status           string                   `json:"status"`
	Timestamp        time.Time                `json:"timestamp"`
	Version          string                   `json:"version"`
	UptimeSeconds    float64                  `json:"uptime_seconds"`
	ActiveOperations int                      `json:"active_operations"`
	Pipeline         []string                 `json:"pipeline,omitempty"`
	Checks           map[string]ServiceHealth `json:"checks,omitempty"`
}

// ServiceHealth represents one component's health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildTime string, paths *config.Paths, operation *operations.Manager, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     paths,
		operation: operation,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status. It is "ok" only when every
// component check is ready.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:        StatusOK,
		Timestamp:     time.Now(),
		Version:       hs.version,
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Checks: map[string]ServiceHealth{
			"operations": hs.checkOperations(),
			"reports":    hs.checkReportDir(),
		},
	}
	if hs.operation != nil {
		status.ActiveOperations = len(hs.operation.ListOperations())
		status.Pipeline = hs.operation.GetRegistry().ListIDs()
	}

	for name, check := range status.Checks {
		if check.Status != StatusReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "Health check degraded",
				slog.String("check", name),
				slog.String("message", check.Message))
		}
	}

	hs.logger.DebugContext(ctx, "Health check completed", slog.String("status", status.Status))
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"name":       config.AppName,
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"start_time": hs.startTime.Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkOperations() ServiceHealth {
	if hs.operation == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "operation manager not initialized"}
	}
	registry := hs.operation.GetRegistry()
	if registry.Count() == 0 {
		return ServiceHealth{Status: StatusNotReady, Message: "no pipeline steps registered"}
	}
	var missing []string
	for _, id := range operations.ReportStepIDs() {
		if !registry.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return ServiceHealth{Status: StatusNotReady, Message: "missing pipeline steps: " + strings.Join(missing, ", ")}
	}
	return ServiceHealth{Status: StatusReady}
}

// checkReportDir verifies the report directory exists and is a directory
func (hs *HealthService) checkReportDir() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "report directory not configured"}
	}
	info, err := os.Stat(hs.paths.ReportsDir)
	if err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("report directory unavailable: %v", err)}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("%s is not a directory", hs.paths.ReportsDir)}
	}
	return ServiceHealth{Status: StatusReady}
}
