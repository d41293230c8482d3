package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yourorg/rentledger/internal/service"
)

// ReportHandler serves reconciliation reports
type ReportHandler struct {
	reportService *service.ReportService
	logger        *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{reportService: reports, logger: logger}
}

// LandlordSummary handles GET /api/reports/landlord/{id}/monthly-summary
func (h *ReportHandler) LandlordSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	year, month, err := queryYearMonth(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	summary, err := h.reportService.LandlordMonthlySummary(r.Context(), id, r.PathValue("id"), year, month)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// LandlordSummaryCSV handles GET /api/reports/landlord/{id}/monthly-summary.csv
func (h *ReportHandler) LandlordSummaryCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	year, month, err := queryYearMonth(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Buffered so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.reportService.LandlordMonthlyCSV(r.Context(), id, r.PathValue("id"), year, month, &buf); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="monthly-summary-%04d-%02d.csv"`, year, month))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("failed to write csv report", slog.String("error", err.Error()))
	}
}

// PropertySummary handles GET /api/reports/property/{id}/monthly-summary
func (h *ReportHandler) PropertySummary(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	year, month, err := queryYearMonth(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	summary, err := h.reportService.PropertyMonthlySummary(r.Context(), id, r.PathValue("id"), year, month)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// PropertyStatus handles GET /api/reports/property/{id}/status?period=YYYY-MM
func (h *ReportHandler) PropertyStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	period, err := queryPeriod(r, "period")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	report, err := h.reportService.PropertyStatus(r.Context(), id, r.PathValue("id"), period)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, report)
}

// TenantOverview handles GET /api/tenant/overview
func (h *ReportHandler) TenantOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	overview, err := h.reportService.TenantOverview(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, overview)
}
