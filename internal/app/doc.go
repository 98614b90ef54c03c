// Package app wires the report pipeline, its services and the HTTP surface
// into one Application.
//
// # Initialization Flow
//
//	1. Resolve the report directory and create it
//	2. Initialize OpenTelemetry (tracing and Prometheus metrics)
//	3. Register the pipeline steps on an operations.Manager
//	4. Build the report and health services
//	5. Set up the chi router and middleware
//
// # Usage
//
// A one-shot run calls Generate and Close:
//
//	a, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer a.Close(ctx)
//	result, err := a.Generate(ctx, services.ReportRequest{})
//
// Serve mode calls Run, which listens until SIGINT or SIGTERM and then shuts
// the server down within Server.ShutdownTimeout.
//
// The package never calls os.Exit; errors go back to main.
package app
