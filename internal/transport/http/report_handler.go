package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "mpxreport/internal/errors"
	"mpxreport/internal/middleware"
	"mpxreport/internal/operations"
	"mpxreport/internal/services"
	api "mpxreport/pkg/contracts/api/v1"
	"mpxreport/pkg/contracts/domain"
)

// maxRequestBody bounds the JSON body of a generate request
const maxRequestBody = 64 << 10

// ReportsPath is where the report routes are mounted
const ReportsPath = "/api/reports"

// Content types of downloadable report files
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// ReportHandler handles report generation and download requests
type ReportHandler struct {
	service  ReportServiceInterface
	validate *validator.Validate
	logger   *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportServiceInterface, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger.With(slog.String("handler", "report")),
	}
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes returns the report routes. generate wraps only the generate
// endpoint, typically with a rate limiter.
func (h *ReportHandler) Routes(generate ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(generate...).Post("/", h.Generate)
	r.Get("/", h.List)
	r.Get("/{name}", h.Download)

	return r
}

// Generate handles POST /api/reports
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	var req api.GenerateReportRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxRequestBody), &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(ctx, "invalid generate request",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		apierrors.WriteError(w, validationError(err))
		return
	}

	h.logger.InfoContext(ctx, "report generation requested",
		slog.String("request_id", reqID),
		slog.String("source", req.Source),
		slog.Any("formats", req.Formats))

	result, err := h.service.Generate(ctx, services.ReportRequest{
		Source:  req.Source,
		Formats: req.Formats,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "report generation failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		apierrors.WriteError(w, serviceError(err))
		return
	}

	render.JSON(w, r, api.GenerateReportResponse{Success: true, Report: result})
}

// List handles GET /api/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ListReports(r.Context())
	if err != nil {
		apierrors.WriteError(w, serviceError(err))
		return
	}

	resp := api.ListReportsResponse{Reports: make([]api.ReportFile, 0, len(reports)), Count: len(reports)}
	for _, f := range reports {
		resp.Reports = append(resp.Reports, api.ReportFile{
			Name:        f.Name,
			Format:      f.Format,
			Size:        f.Size,
			Modified:    f.ModTime,
			DownloadURL: ReportsPath + "/" + url.PathEscape(f.Name),
		})
	}
	render.JSON(w, r, resp)
}

// Download handles GET /api/reports/{name}
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	info, err := h.service.LookupReport(ctx, name)
	if err != nil {
		apierrors.WriteError(w, serviceError(err))
		return
	}

	f, err := os.Open(info.Path)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open report",
			slog.String("name", name),
			slog.String("error", err.Error()))
		apierrors.WriteError(w, apierrors.NotFoundError("report "+name))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(info.Format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name+`"`)
	http.ServeContent(w, r, info.Name, info.ModTime, f)
}

func contentType(format string) string {
	switch domain.ReportFormat(format) {
	case domain.ReportFormatExcel:
		return ContentTypeXLSX
	case domain.ReportFormatCSV:
		return ContentTypeCSV
	default:
		return "application/octet-stream"
	}
}

// serviceError maps service and pipeline errors onto API errors
func serviceError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, services.ErrOperationRunning):
		return apierrors.New(http.StatusConflict, "OPERATION_RUNNING", "A report is already being generated")
	case errors.Is(err, services.ErrNoReportsFound):
		return apierrors.New(http.StatusNotFound, "NO_REPORTS_FOUND", "No reports available")
	}

	var opErr *operations.OperationError
	if errors.As(err, &opErr) {
		switch opErr.Type {
		case operations.ErrorTypeTimeout:
			return apierrors.NewWithDetails(http.StatusGatewayTimeout, "OPERATION_TIMEOUT", "Report generation timed out", opErr.Step)
		case operations.ErrorTypeCancellation:
			return apierrors.New(http.StatusServiceUnavailable, "OPERATION_CANCELLED", "Report generation was cancelled")
		case operations.ErrorTypeValidation:
			return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Report request is incomplete", err.Error())
		}
	}
	return apierrors.FromError(err)
}

func validationError(err error) *apierrors.APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierrors.InvalidRequestWithError(err)
	}
	fields := make([]apierrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return apierrors.NewValidationErrors(fields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + fe.Param()
	case "http_url":
		return "must be an http(s) URL"
	case "max":
		return "must have at most " + fe.Param() + " entries or characters"
	default:
		return "failed on " + fe.Tag()
	}
}
