package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"mpxreport/internal/operations"
	"mpxreport/pkg/contracts/domain"
)

// MockStep is a configurable implementation of the step interface
type MockStep struct {
	IDValue   string
	NameValue string

	// Configurable functions
	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error

	// Call tracking
	mu            sync.Mutex
	ExecuteCalls  int
	ValidateCalls int
	LastExecuted  time.Time
}

// ID returns the step ID
func (m *MockStep) ID() string {
	return m.IDValue
}

// Name returns the step name
func (m *MockStep) Name() string {
	return m.NameValue
}

// Execute runs the mock execute function
func (m *MockStep) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.ExecuteCalls++
	m.LastExecuted = time.Now()
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Validate runs the mock validate function
func (m *MockStep) Validate(state *operations.OperationState) error {
	m.mu.Lock()
	m.ValidateCalls++
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// Executions returns how often Execute ran
func (m *MockStep) Executions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// MockFetcher serves a fixed body, or fails with Err for the first Failures calls
type MockFetcher struct {
	Body     string
	Err      error
	Failures int

	mu        sync.Mutex
	Calls     int
	Locations []string
	Closed    int
}

// Fetch returns the configured body or error
func (f *MockFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls++
	f.Locations = append(f.Locations, location)
	if f.Err != nil && (f.Failures == 0 || f.Calls <= f.Failures) {
		return nil, f.Err
	}
	return &trackedReader{Reader: bytes.NewReader([]byte(f.Body)), fetcher: f}, nil
}

// ClosedCount returns how many served streams were closed
func (f *MockFetcher) ClosedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

type trackedReader struct {
	io.Reader
	fetcher *MockFetcher
	once    sync.Once
}

func (r *trackedReader) Close() error {
	r.once.Do(func() {
		r.fetcher.mu.Lock()
		r.fetcher.Closed++
		r.fetcher.mu.Unlock()
	})
	return nil
}

// MockExporter records the sets it was asked to export
type MockExporter struct {
	Files []string
	Err   error

	mu      sync.Mutex
	Sets    []*domain.SummarySet
	Formats [][]domain.ReportFormat
	Dates   []time.Time
}

// Export records the call and returns Files or Err
func (e *MockExporter) Export(ctx context.Context, set *domain.SummarySet, now time.Time, formats []domain.ReportFormat) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Sets = append(e.Sets, set)
	e.Formats = append(e.Formats, formats)
	e.Dates = append(e.Dates, now)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Files, nil
}
