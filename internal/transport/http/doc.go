// Package http implements the HTTP handlers of the report service.
//
// Handlers stay thin: they decode and validate the request, call a service
// and translate the outcome into a JSON response. Errors are written through
// internal/errors so every endpoint returns the same error envelope:
//
//	{"success": false, "error": {"status_code": 409, "error_code": "OPERATION_RUNNING", ...}}
//
// Routes mounted by the application:
//
//	GET  /api/health          health and readiness
//	GET  /api/version         build information
//	POST /api/reports         generate a report
//	GET  /api/reports         list generated report files
//	GET  /api/reports/{name}  download one report file
package http
