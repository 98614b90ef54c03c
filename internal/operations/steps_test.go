package operations_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpxreport/internal/config"
	"mpxreport/internal/dataprocessing"
	apperrors "mpxreport/internal/errors"
	"mpxreport/internal/exporter"
	"mpxreport/internal/operations"
	"mpxreport/internal/operations/testutil"
	sharedtest "mpxreport/internal/shared/testutil"
	"mpxreport/internal/source"
	"mpxreport/pkg/contracts/domain"
)

var runDate = time.Date(2022, 6, 3, 12, 0, 0, 0, time.UTC)

func reportManager(t *testing.T, deps operations.ReportDeps) *operations.Manager {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}
	return newManager(t, operations.NewReportSteps(deps)...)
}

func TestNewReportSteps_Order(t *testing.T) {
	steps := operations.NewReportSteps(operations.ReportDeps{})

	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
		assert.NotEmpty(t, s.Name())
	}
	assert.Equal(t, []string{
		operations.StepIDFetch,
		operations.StepIDLoad,
		operations.StepIDNormalize,
		operations.StepIDCategorize,
		operations.StepIDAggregate,
		operations.StepIDExport,
	}, ids)
	assert.Equal(t, operations.ReportStepIDs(), ids)
}

func TestNewReportSteps_TagsPipelineComponent(t *testing.T) {
	logger, handler := sharedtest.NewTestLogger(t)
	fetcher := &testutil.MockFetcher{Body: sharedtest.LineListCSV}
	m := newManager(t, operations.NewReportSteps(operations.ReportDeps{
		Fetcher:       fetcher,
		Exporter:      &testutil.MockExporter{Files: []string{"report.xlsx"}},
		DefaultSource: "latest.csv",
		Logger:        logger,
	})...)

	_, err := m.Execute(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)

	record, ok := handler.Find("Line-list source downloaded")
	require.True(t, ok)
	assert.Equal(t, "pipeline", record.Attrs["component"])
}

func TestReportPipeline_EndToEnd(t *testing.T) {
	paths, err := config.NewPaths(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	fetcher := &testutil.MockFetcher{Body: sharedtest.LineListCSV}
	m := reportManager(t, operations.ReportDeps{
		Fetcher:  fetcher,
		Exporter: exporter.NewReporter(paths, func() time.Time { return runDate }, quietLogger()),
	})

	resp, err := m.Execute(context.Background(), operations.OperationRequest{
		Source:  "https://example.org/latest.csv",
		Formats: []domain.ReportFormat{domain.ReportFormatExcel, domain.ReportFormatCSV},
		RunDate: runDate,
	})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	assert.Equal(t, []string{"https://example.org/latest.csv"}, fetcher.Locations)
	assert.Equal(t, 1, fetcher.ClosedCount(), "source stream must be closed after download")

	stats, ok := resp.State.GetContext(operations.ContextKeyLoadStats)
	require.True(t, ok)
	assert.Equal(t, sharedtest.LineListLoadedRecords, stats.(dataprocessing.LoadStats).Loaded)

	confirmed, ok := resp.State.GetContext(operations.ContextKeyConfirmed)
	require.True(t, ok)
	records := confirmed.([]domain.CaseRecord)
	assert.Len(t, records, sharedtest.LineListConfirmedRecords)
	for _, r := range records {
		assert.NotEmpty(t, r.AgeBucket, r.ID)
	}

	v, ok := resp.State.GetContext(operations.ContextKeySummarySet)
	require.True(t, ok)
	set := v.(*domain.SummarySet)
	countries, ok := set.Table(domain.SheetCountriesCases)
	require.True(t, ok)
	row, ok := countries.Lookup("Great Britain")
	require.True(t, ok)
	assert.Equal(t, 3, row[1])

	filesValue, ok := resp.State.GetContext(operations.ContextKeyFiles)
	require.True(t, ok)
	files := filesValue.([]string)
	require.Len(t, files, 1+len(domain.SheetOrder))
	assert.Equal(t, paths.GetReportPath(runDate), files[0])
	for _, f := range files {
		assert.FileExists(t, f)
	}

	assert.Equal(t, sharedtest.LineListRows, resp.Steps[operations.StepIDLoad].Metadata["rows"])
	assert.Equal(t, sharedtest.LineListConfirmedRecords, resp.Steps[operations.StepIDNormalize].Metadata["confirmed"])
	assert.Equal(t, len(files), resp.Steps[operations.StepIDExport].Metadata["files"])
}

// largeLineList returns a header plus rows confirmed cases, well over 1 MB
// for the row counts used below.
func largeLineList(rows int) string {
	var b strings.Builder
	b.WriteString(strings.SplitN(sharedtest.LineListCSV, "\n", 2)[0])
	b.WriteString("\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "N%d,confirmed,Lisbon,Portugal,20-44,male,%02d/05/2022,\"Fever; Headaches, Rash\",RT-PCR,https://example.org/%d,\n", i, 1+i%28, i)
	}
	return b.String()
}

func TestReportPipeline_RemoteSourceLargerThanBuffers(t *testing.T) {
	const rows = 30000
	body := largeLineList(rows)
	require.Greater(t, len(body), 1<<20)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		flusher := w.(http.Flusher)
		for chunk := body; len(chunk) > 0; {
			n := min(len(chunk), 64<<10)
			_, _ = w.Write([]byte(chunk[:n]))
			flusher.Flush()
			chunk = chunk[n:]
		}
	}))
	defer srv.Close()

	paths, err := config.NewPaths(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)
	m := reportManager(t, operations.ReportDeps{
		Fetcher:  source.NewFetcher(10*time.Second, source.WithLogger(quietLogger())),
		Exporter: exporter.NewReporter(paths, func() time.Time { return runDate }, quietLogger()),
	})

	resp, err := m.Execute(context.Background(), operations.OperationRequest{
		Source:  srv.URL + "/latest.csv",
		RunDate: runDate,
	})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.Equal(t, len(body), resp.Steps[operations.StepIDFetch].Metadata["bytes"])

	stats, ok := resp.State.GetContext(operations.ContextKeyLoadStats)
	require.True(t, ok)
	assert.Equal(t, rows, stats.(dataprocessing.LoadStats).Loaded)
	assert.FileExists(t, paths.GetReportPath(runDate))
}

func TestReportPipeline_DefaultSourceAndFormats(t *testing.T) {
	fetcher := &testutil.MockFetcher{Body: sharedtest.LineListCSV}
	exp := &testutil.MockExporter{Files: []string{"report.xlsx"}}
	m := reportManager(t, operations.ReportDeps{
		Fetcher:       fetcher,
		Exporter:      exp,
		DefaultSource: config.DefaultSourceURL,
	})

	_, err := m.Execute(context.Background(), operations.OperationRequest{RunDate: runDate})
	require.NoError(t, err)

	assert.Equal(t, []string{config.DefaultSourceURL}, fetcher.Locations)
	require.Len(t, exp.Sets, 1)
	assert.NoError(t, exp.Sets[0].Validate())
	assert.Nil(t, exp.Formats[0])
	assert.Equal(t, runDate, exp.Dates[0])
}

func TestReportPipeline_FetchRetries(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		failures  int
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "server error is retried",
			err:       apperrors.NewNetworkError("source returned status 503", nil).WithContext("status", 503),
			failures:  1,
			wantCalls: 2,
		},
		{
			name:      "transport failure is retried",
			err:       apperrors.NewNetworkError("failed to download source", errors.New("connection reset")),
			failures:  2,
			wantCalls: 3,
		},
		{
			name:      "not found is not retried",
			err:       apperrors.NewNetworkError("source returned status 404", nil).WithContext("status", 404),
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "missing file is not retried",
			err:       apperrors.NewNotFoundError("source file latest.csv"),
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &testutil.MockFetcher{Body: sharedtest.LineListCSV, Err: tt.err, Failures: tt.failures}
			exp := &testutil.MockExporter{}
			m := reportManager(t, operations.ReportDeps{Fetcher: fetcher, Exporter: exp})

			resp, err := m.Execute(context.Background(), operations.OperationRequest{Source: "latest.csv"})

			assert.Equal(t, tt.wantCalls, fetcher.Calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, operations.StepStatusFailed, resp.Steps[operations.StepIDFetch].Status)
				assert.Equal(t, operations.StepStatusSkipped, resp.Steps[operations.StepIDExport].Status)
				assert.Empty(t, exp.Sets, "no report on failure")
				return
			}
			require.NoError(t, err)
			assert.Len(t, exp.Sets, 1)
		})
	}
}

func TestReportPipeline_ParseFailureAbortsRun(t *testing.T) {
	fetcher := &testutil.MockFetcher{Body: "ID,Status\nN1,confirmed\n"}
	exp := &testutil.MockExporter{}
	m := reportManager(t, operations.ReportDeps{Fetcher: fetcher, Exporter: exp})

	resp, err := m.Execute(context.Background(), operations.OperationRequest{Source: "latest.csv"})
	require.Error(t, err)

	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Equal(t, operations.StepStatusFailed, resp.Steps[operations.StepIDLoad].Status)
	assert.Equal(t, operations.StepStatusSkipped, resp.Steps[operations.StepIDAggregate].Status)
	assert.Empty(t, exp.Sets)
	assert.Equal(t, 1, fetcher.ClosedCount())
}

func TestReportPipeline_ExportFailure(t *testing.T) {
	exp := &testutil.MockExporter{Err: apperrors.NewStorageError("disk full", nil)}
	m := reportManager(t, operations.ReportDeps{
		Fetcher:  &testutil.MockFetcher{Body: sharedtest.LineListCSV},
		Exporter: exp,
	})

	resp, err := m.Execute(context.Background(), operations.OperationRequest{Source: "latest.csv"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Equal(t, operations.StepStatusFailed, resp.Steps[operations.StepIDExport].Status)
	_, ok := resp.State.GetContext(operations.ContextKeyFiles)
	assert.False(t, ok)
}

func TestReportPipeline_MissingCollaborators(t *testing.T) {
	m := reportManager(t, operations.ReportDeps{})

	resp, err := m.Execute(context.Background(), operations.OperationRequest{Source: "latest.csv"})
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(err))
	assert.Equal(t, operations.StepStatusFailed, resp.Steps[operations.StepIDFetch].Status)
}

func TestReportPipeline_NoSource(t *testing.T) {
	m := reportManager(t, operations.ReportDeps{Fetcher: &testutil.MockFetcher{}, Exporter: &testutil.MockExporter{}})

	_, err := m.Execute(context.Background(), operations.OperationRequest{})
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(err))
	assert.Contains(t, err.Error(), "no source location")
}
