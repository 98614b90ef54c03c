package services

import "errors"

// Report service errors
var (
	// ErrOperationRunning is returned while another report run is in progress
	ErrOperationRunning = errors.New("report generation already running")

	ErrNoReportsFound = errors.New("no reports found")
)
