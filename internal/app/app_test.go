package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpxreport/internal/config"
	"mpxreport/internal/operations/testutil"
	"mpxreport/internal/services"
	sharedtest "mpxreport/internal/shared/testutil"
	api "mpxreport/pkg/contracts/api/v1"
)

func fixedClock() time.Time {
	return time.Date(2022, 6, 3, 12, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Report.OutputDir = filepath.Join(t.TempDir(), "reports")
	cfg.Source.Location = "https://example.org/latest.csv"
	return cfg
}

func newTestApplication(t *testing.T, cfg *config.Config, fetcher *testutil.MockFetcher) *Application {
	t.Helper()
	a, err := NewApplication(cfg, quietLogger(), WithFetcher(fetcher), WithClock(fixedClock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewApplication(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApplication(t, cfg, &testutil.MockFetcher{Body: sharedtest.LineListCSV})

	assert.DirExists(t, cfg.Report.OutputDir)
	assert.Equal(t, 6, a.Manager.GetRegistry().Count())
	assert.NotNil(t, a.ReportService)
	assert.NotNil(t, a.HealthService)
	assert.NotNil(t, a.Metrics)
	assert.Equal(t, cfg.Server.Address, a.Server.Addr)
}

func TestNewApplication_InvalidFormats(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Formats = []string{"pdf"}

	_, err := NewApplication(cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize services")
}

func TestApplication_Generate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Formats = []string{"xlsx", "csv"}
	fetcher := &testutil.MockFetcher{Body: sharedtest.LineListCSV}
	a := newTestApplication(t, cfg, fetcher)

	result, err := a.Generate(context.Background(), services.ReportRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{cfg.Source.Location}, fetcher.Locations)
	assert.Equal(t, filepath.Join(a.Paths.ReportsDir, "MonkeypoxReportOfGlobalHealth_2022-06-03.xlsx"), result.Files[0])
	assert.Greater(t, len(result.Files), 1)
	assert.Equal(t, sharedtest.LineListLoadedRecords, result.LoadedRecords)
	assert.Equal(t, sharedtest.LineListConfirmedRecords, result.ConfirmedRecords)
	for _, f := range result.Files {
		assert.FileExists(t, f)
	}
}

func TestApplication_Routes(t *testing.T) {
	a := newTestApplication(t, testConfig(t), &testutil.MockFetcher{Body: sharedtest.LineListCSV})
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/reports", "application/json", strings.NewReader(`{"formats":["xlsx"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var generated api.GenerateReportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&generated))
	require.True(t, generated.Success)
	require.Len(t, generated.Report.Files, 1)

	listResp, err := http.Get(srv.URL + "/api/reports")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list api.ListReportsResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Equal(t, 1, list.Count)

	download, err := http.Get(srv.URL + list.Reports[0].DownloadURL)
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, http.StatusOK, download.StatusCode)
	assert.Contains(t, download.Header.Get("Content-Disposition"), "MonkeypoxReportOfGlobalHealth_2022-06-03.xlsx")

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/api/health", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{path: "/api/version", wantStatus: http.StatusOK, wantBody: `"name":"mpxreport"`},
		{path: "/api/reports/MonkeypoxReportOfGlobalHealth_2021-01-01.xlsx", wantStatus: http.StatusNotFound, wantBody: `"success":false`},
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: "report_runs_total"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestApplication_RateLimitsGenerate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.01, Burst: 1}
	a := newTestApplication(t, cfg, &testutil.MockFetcher{Body: sharedtest.LineListCSV})

	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", nil))
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, statuses)

	// listing is not limited
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_Generate_SourceFailure(t *testing.T) {
	a := newTestApplication(t, testConfig(t), &testutil.MockFetcher{Err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", nil))

	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	reports, err := a.ReportService.ListReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestApplication_Generate_RejectsForeignSource(t *testing.T) {
	fetcher := &testutil.MockFetcher{Body: sharedtest.LineListCSV}
	a := newTestApplication(t, testConfig(t), fetcher)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"source":"http://10.0.0.1/latest.csv"}`)
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fetcher.Calls)
}

func TestApplication_ServeStopsOnCancel(t *testing.T) {
	a := newTestApplication(t, testConfig(t), &testutil.MockFetcher{Body: sharedtest.LineListCSV})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
