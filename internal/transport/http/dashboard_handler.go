package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"stockdash/internal/dataprocessing"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/exporter"
	"stockdash/internal/infrastructure"
	stockmw "stockdash/internal/middleware"
	"stockdash/internal/services"
	"stockdash/pkg/contracts/domain"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// multipart parts beyond this are spooled to disk by net/http
	multipartMemory = 32 << 20
)

// UploadLimits bounds a multipart upload request
type UploadLimits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// requestBytes is the body size accepted for an upload request; the
// per-file limit is enforced by the service.
func (l UploadLimits) requestBytes() int64 {
	files := l.MaxFiles
	if files <= 0 {
		files = 1
	}
	return l.MaxFileBytes*int64(files) + 1<<20
}

// selectionQuery is the validated form of ?company=&metric=
type selectionQuery struct {
	Company string `json:"company" validate:"omitempty,company"`
	Metric  string `json:"metric" validate:"omitempty,metric"`
}

func (q selectionQuery) selection() domain.Selection {
	sel := domain.Selection{Company: strings.TrimSpace(q.Company)}
	if m, ok := domain.ParseMetric(q.Metric); ok {
		sel.Metric = m
	}
	return sel
}

// DashboardHandler handles the session-scoped dashboard API
type DashboardHandler struct {
	service      DashboardService
	validator    *stockmw.Validator
	queryParams  *stockmw.QueryParamValidator
	limits       UploadLimits
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardService, limits UploadLimits, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    stockmw.NewValidator(),
		queryParams:  stockmw.NewQueryParamValidator(logger, errorHandler),
		limits:       limits,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the session routes, mounted under /api/sessions
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)

		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.With(stockmw.ContentTypeValidator(h.errorHandler, "multipart/form-data")).
			Post("/uploads", h.Upload)
		r.Post("/reload", h.Reload)

		r.Get("/companies", h.Companies)
		r.Get("/view", h.View)
		r.Get("/stats", h.Stats)
		r.Get("/summaries", h.Summaries)

		r.Get("/export/"+exporter.CombinedCSVName, h.ExportCombinedCSV)
		r.Get("/export/"+exporter.CombinedXLSXName, h.ExportXLSX)
		r.Get("/export/view.csv", h.ExportView)
		r.Get("/export/stats.csv", h.ExportStats)
	})

	return r
}

// SessionCtx validates the session ID and puts it on the request context
// so every log line of the request carries it.
func (h *DashboardHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if id == "" || len(id) > 64 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sessionID", "Invalid session ID"))
			return
		}
		ctx := infrastructure.WithSessionID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CreateSession handles POST /api/sessions
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.fail(w, r, "failed to create session", err)
		return
	}

	h.logger.InfoContext(r.Context(), "session created",
		slog.String("session_id", summary.ID),
		slog.Int("rows", summary.Rows),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	render.Status(r, http.StatusCreated)
	success(w, r, summary)
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, "failed to get session", err)
		return
	}
	success(w, r, summary)
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *DashboardHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.fail(w, r, "failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /api/sessions/{sessionID}/uploads. Files are read
// from the "files" (or "file") form fields.
func (h *DashboardHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.requestBytes())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, "upload rejected", services.ErrUploadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		uploads = append(uploads, upload)
	}

	summary, err := h.service.Upload(r.Context(), chi.URLParam(r, "sessionID"), uploads)
	if err != nil {
		h.fail(w, r, "upload rejected", err)
		return
	}

	h.logger.InfoContext(r.Context(), "sources uploaded",
		slog.Int("files", len(uploads)),
		slog.Int("rows", summary.Rows),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	success(w, r, summary)
}

func readUpload(fh *multipart.FileHeader) (services.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.Upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return services.Upload{
		Name:        filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Reload handles POST /api/sessions/{sessionID}/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Reload(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, "failed to reload session", err)
		return
	}
	success(w, r, summary)
}

// Companies handles GET /api/sessions/{sessionID}/companies
func (h *DashboardHandler) Companies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.Companies(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, "failed to list companies", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   companies,
		"count":  len(companies),
	})
}

// View handles GET /api/sessions/{sessionID}/view?company=&metric=
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.parseSelection(w, r)
	if !ok {
		return
	}

	view, err := h.service.View(r.Context(), chi.URLParam(r, "sessionID"), sel)
	if err != nil {
		h.fail(w, r, "failed to compute view", err)
		return
	}
	success(w, r, view)
}

// Stats handles GET /api/sessions/{sessionID}/stats?company=
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.parseSelection(w, r)
	if !ok {
		return
	}

	view, err := h.service.View(r.Context(), chi.URLParam(r, "sessionID"), sel)
	if err != nil {
		h.fail(w, r, "failed to compute stats", err)
		return
	}
	success(w, r, map[string]interface{}{
		"selection": view.Selection,
		"stats":     view.Stats,
	})
}

// Summaries handles GET /api/sessions/{sessionID}/summaries?last=
func (h *DashboardHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	lastN, ok := h.queryParams.ValidateInt(w, r, "last", 1, 1000, dataprocessing.DefaultLastCloses)
	if !ok {
		return
	}

	summaries, err := h.service.Summaries(r.Context(), chi.URLParam(r, "sessionID"), lastN)
	if err != nil {
		h.fail(w, r, "failed to summarize companies", err)
		return
	}
	success(w, r, summaries)
}

// ExportCombinedCSV handles GET /api/sessions/{sessionID}/export/combined_stocks.csv
func (h *DashboardHandler) ExportCombinedCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportCombinedCSV(r.Context(), chi.URLParam(r, "sessionID"), &buf); err != nil {
		h.fail(w, r, "failed to export dataset", err)
		return
	}
	h.download(w, r, exporter.CombinedCSVName, csvContentType, &buf)
}

// ExportXLSX handles GET /api/sessions/{sessionID}/export/combined_stocks.xlsx
func (h *DashboardHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportXLSX(r.Context(), chi.URLParam(r, "sessionID"), &buf); err != nil {
		h.fail(w, r, "failed to export workbook", err)
		return
	}
	h.download(w, r, exporter.CombinedXLSXName, xlsxContentType, &buf)
}

// ExportView handles GET /api/sessions/{sessionID}/export/view.csv?company=
func (h *DashboardHandler) ExportView(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.parseSelection(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	view, err := h.service.ExportView(r.Context(), chi.URLParam(r, "sessionID"), sel.Company, &buf)
	if err != nil {
		h.fail(w, r, "failed to export view", err)
		return
	}
	h.download(w, r, exporter.ViewCSVName(view.Selection.Company), csvContentType, &buf)
}

// ExportStats handles GET /api/sessions/{sessionID}/export/stats.csv?company=
func (h *DashboardHandler) ExportStats(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.parseSelection(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	view, err := h.service.ExportStatsCSV(r.Context(), chi.URLParam(r, "sessionID"), sel.Company, &buf)
	if err != nil {
		h.fail(w, r, "failed to export stats", err)
		return
	}
	h.download(w, r, exporter.StatsCSVName(view.Selection.Company), csvContentType, &buf)
}

// parseSelection validates ?company=&metric=. An unknown metric is a 400;
// an unknown company is left to the service, which falls back.
func (h *DashboardHandler) parseSelection(w http.ResponseWriter, r *http.Request) (domain.Selection, bool) {
	q := selectionQuery{
		Company: r.URL.Query().Get("company"),
		Metric:  r.URL.Query().Get("metric"),
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return domain.Selection{}, false
	}
	return q.selection(), true
}

func (h *DashboardHandler) download(w http.ResponseWriter, r *http.Request, name, contentType string, body *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := body.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "download interrupted",
			slog.String("file", name),
			slog.String("error", err.Error()))
	}
}

// fail logs a service error and answers with its problem document
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.DebugContext(r.Context(), msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	h.errorHandler.HandleError(w, r, err)
}

// success writes the standard {"status":"success","data":...} envelope
func success(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}
