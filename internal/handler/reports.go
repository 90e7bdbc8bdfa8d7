package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/clinirepas/api/internal/analytics"
	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
	"github.com/clinirepas/api/internal/report"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	ListPatientOrdersSince(ctx context.Context, since time.Time) ([]database.PatientOrder, error)
	ListEmployeeOrdersSince(ctx context.Context, since time.Time) ([]database.EmployeeOrder, error)
	ListEmployeeOrderItemsSince(ctx context.Context, since time.Time, excludeStatus string) ([]database.EmployeeOrderItem, error)
	ListPatients(ctx context.Context, includeDischarged bool) ([]database.Patient, error)
}

// PDFRenderer renders the export document. Satisfied by *report.Renderer.
type PDFRenderer interface {
	RenderPDF(title string, generatedAt time.Time, summary []report.SummaryRow, sections []report.Section) ([]byte, error)
}

// ReportsHandler handles analytics and export endpoints.
type ReportsHandler struct {
	store    ReportsStore
	renderer PDFRenderer
	now      func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore, renderer PDFRenderer) *ReportsHandler {
	return &ReportsHandler{store: store, renderer: renderer, now: time.Now}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/daily", h.Daily)
	r.Get("/status", h.Status)
	r.Get("/top-menus", h.TopMenus)
	r.Get("/export.json", h.ExportJSON)
	r.Get("/export.pdf", h.ExportPDF)
}

// --- Response types ---

type summaryResponse struct {
	RangeLabel      string `json:"range_label"`
	Days            int    `json:"days"`
	PatientOrders   int    `json:"patient_orders"`
	EmployeeOrders  int    `json:"employee_orders"`
	Revenue         string `json:"revenue"`
	RevenueTrendPct string `json:"revenue_trend_pct"`
}

type statusResponse struct {
	PatientStatusCounts  []analytics.StatusCount    `json:"patient_status_counts"`
	EmployeeStatusCounts []analytics.StatusCount    `json:"employee_status_counts"`
	MealTypeCounts       []analytics.DimensionCount `json:"meal_type_counts"`
	DietCounts           []analytics.DimensionCount `json:"diet_counts"`
}

// --- Handlers ---

// Summary returns headline totals for the window.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	patientOrders, employeeOrders, err := h.ordersInWindow(r.Context(), days)
	if err != nil {
		log.Printf("ERROR: report summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	now := h.now()
	buckets := analytics.BucketByDay(patientOrders, employeeOrders, days, now)
	revenue, trend := revenueAndTrend(buckets)

	writeJSON(w, http.StatusOK, summaryResponse{
		RangeLabel:      report.RangeLabel(days, now),
		Days:            days,
		PatientOrders:   len(patientOrders),
		EmployeeOrders:  len(employeeOrders),
		Revenue:         revenue.StringFixed(2),
		RevenueTrendPct: fmt.Sprintf("%.1f", trend),
	})
}

// Daily returns one bucket per calendar day in the window, zero-filled.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	patientOrders, employeeOrders, err := h.ordersInWindow(r.Context(), days)
	if err != nil {
		log.Printf("ERROR: report daily: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, analytics.BucketByDay(patientOrders, employeeOrders, days, h.now()))
}

// Status returns count distributions: by order status, meal type and diet.
func (h *ReportsHandler) Status(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	patientOrders, employeeOrders, err := h.ordersInWindow(r.Context(), days)
	if err != nil {
		log.Printf("ERROR: report status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	patients, err := h.store.ListPatients(r.Context(), true)
	if err != nil {
		log.Printf("ERROR: report status: list patients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		PatientStatusCounts:  analytics.CountPatientOrdersByStatus(patientOrders),
		EmployeeStatusCounts: analytics.CountEmployeeOrdersByStatus(employeeOrders),
		MealTypeCounts:       analytics.CountByMealType(patientOrders),
		DietCounts:           analytics.CountByDiet(patients),
	})
}

// TopMenus ranks cafeteria menus by order count inside the window.
func (h *ReportsHandler) TopMenus(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 5
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 50 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	items, err := h.store.ListEmployeeOrderItemsSince(r.Context(), h.windowStart(days), enum.EmployeeOrderStatusCancelled)
	if err != nil {
		log.Printf("ERROR: report top menus: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, analytics.TopMenus(items, limit))
}

// ExportJSON streams the machine-readable data dump.
func (h *ReportsHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	export, err := h.buildExport(r.Context(), days)
	if err != nil {
		log.Printf("ERROR: export json: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data, err := report.RenderJSON(export)
	if err != nil {
		log.Printf("ERROR: export json: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="rapport-%s.json"`, export.GeneratedAt.Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ExportPDF streams the printable report.
func (h *ReportsHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	export, err := h.buildExport(r.Context(), days)
	if err != nil {
		log.Printf("ERROR: export pdf: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data, err := h.renderer.RenderPDF(
		"Rapport d'activité restauration",
		export.GeneratedAt,
		exportSummaryRows(export),
		exportSections(export),
	)
	if err != nil {
		log.Printf("ERROR: export pdf: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="rapport-%s.pdf"`, export.GeneratedAt.Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// --- Helpers ---

// parseDays reads the window size. Only the dashboard's three presets are
// accepted.
func parseDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 7, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid days")
	}
	switch days {
	case 7, 30, 90:
		return days, nil
	}
	return 0, fmt.Errorf("days must be 7, 30 or 90")
}

func (h *ReportsHandler) windowStart(days int) time.Time {
	now := h.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start.AddDate(0, 0, -(days - 1))
}

func (h *ReportsHandler) ordersInWindow(ctx context.Context, days int) ([]database.PatientOrder, []database.EmployeeOrder, error) {
	since := h.windowStart(days)
	patientOrders, err := h.store.ListPatientOrdersSince(ctx, since)
	if err != nil {
		return nil, nil, fmt.Errorf("list patient orders: %w", err)
	}
	employeeOrders, err := h.store.ListEmployeeOrdersSince(ctx, since)
	if err != nil {
		return nil, nil, fmt.Errorf("list employee orders: %w", err)
	}
	return patientOrders, employeeOrders, nil
}

// buildExport runs the whole aggregation pass once; both export formats and
// the PDF read from the same struct so they can never disagree.
func (h *ReportsHandler) buildExport(ctx context.Context, days int) (report.Export, error) {
	patientOrders, employeeOrders, err := h.ordersInWindow(ctx, days)
	if err != nil {
		return report.Export{}, err
	}

	items, err := h.store.ListEmployeeOrderItemsSince(ctx, h.windowStart(days), enum.EmployeeOrderStatusCancelled)
	if err != nil {
		return report.Export{}, fmt.Errorf("list order items: %w", err)
	}

	patients, err := h.store.ListPatients(ctx, true)
	if err != nil {
		return report.Export{}, fmt.Errorf("list patients: %w", err)
	}

	now := h.now()
	buckets := analytics.BucketByDay(patientOrders, employeeOrders, days, now)
	_, trend := revenueAndTrend(buckets)

	return report.Export{
		GeneratedAt:          now,
		RangeLabel:           report.RangeLabel(days, now),
		Days:                 days,
		Buckets:              buckets,
		PatientStatusCounts:  analytics.CountPatientOrdersByStatus(patientOrders),
		EmployeeStatusCounts: analytics.CountEmployeeOrdersByStatus(employeeOrders),
		MealTypeCounts:       analytics.CountByMealType(patientOrders),
		DietCounts:           analytics.CountByDiet(patients),
		TopMenus:             analytics.TopMenus(items, 5),
		RevenueTrendPct:      trend,
	}, nil
}

func revenueAndTrend(buckets []analytics.DayBucket) (decimal.Decimal, float64) {
	total := decimal.Zero
	series := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		total = total.Add(b.Revenue)
		f, _ := b.Revenue.Float64()
		series = append(series, f)
	}
	return total, analytics.Trend(series)
}

func exportSummaryRows(e report.Export) []report.SummaryRow {
	patientTotal, employeeTotal := 0, 0
	revenue := decimal.Zero
	for _, b := range e.Buckets {
		patientTotal += b.PatientOrders
		employeeTotal += b.EmployeeOrders
		revenue = revenue.Add(b.Revenue)
	}
	return []report.SummaryRow{
		{Label: "Période", Value: e.RangeLabel},
		{Label: "Commandes patients", Value: strconv.Itoa(patientTotal)},
		{Label: "Commandes employés", Value: strconv.Itoa(employeeTotal)},
		{Label: "Recettes cafétéria", Value: revenue.StringFixed(0) + " FCFA"},
		{Label: "Tendance recettes", Value: fmt.Sprintf("%.1f %%", e.RevenueTrendPct)},
	}
}

func exportSections(e report.Export) []report.Section {
	daily := report.Section{
		Title: "Commandes par jour",
		Columns: []report.Column{
			{Header: "Date", Width: 35},
			{Header: "Patients", Width: 35},
			{Header: "Employés", Width: 35},
			{Header: "Recettes (FCFA)"},
		},
	}
	for _, b := range e.Buckets {
		daily.Rows = append(daily.Rows, []string{
			b.Date,
			strconv.Itoa(b.PatientOrders),
			strconv.Itoa(b.EmployeeOrders),
			b.Revenue.StringFixed(0),
		})
	}

	statuses := report.Section{
		Title: "Commandes patients par statut",
		Columns: []report.Column{
			{Header: "Statut"},
			{Header: "Commandes", Width: 40},
		},
	}
	for _, s := range e.PatientStatusCounts {
		statuses.Rows = append(statuses.Rows, []string{s.Status, strconv.Itoa(s.Count)})
	}

	employeeStatuses := report.Section{
		Title: "Commandes employés par statut",
		Columns: []report.Column{
			{Header: "Statut"},
			{Header: "Commandes", Width: 40},
		},
	}
	for _, s := range e.EmployeeStatusCounts {
		employeeStatuses.Rows = append(employeeStatuses.Rows, []string{s.Status, strconv.Itoa(s.Count)})
	}

	mealTypes := report.Section{
		Title: "Répartition par type de repas",
		Columns: []report.Column{
			{Header: "Type de repas"},
			{Header: "Commandes", Width: 40},
		},
	}
	for _, m := range e.MealTypeCounts {
		mealTypes.Rows = append(mealTypes.Rows, []string{m.Value, strconv.Itoa(m.Count)})
	}

	diets := report.Section{
		Title: "Répartition par régime",
		Columns: []report.Column{
			{Header: "Régime"},
			{Header: "Patients", Width: 40},
		},
	}
	for _, d := range e.DietCounts {
		diets.Rows = append(diets.Rows, []string{d.Value, strconv.Itoa(d.Count)})
	}

	topMenus := report.Section{
		Title: "Menus les plus commandés",
		Columns: []report.Column{
			{Header: "Menu"},
			{Header: "Commandes", Width: 40},
		},
	}
	for _, m := range e.TopMenus {
		topMenus.Rows = append(topMenus.Rows, []string{m.Value, strconv.Itoa(m.Count)})
	}

	return []report.Section{daily, statuses, employeeStatuses, mealTypes, diets, topMenus}
}
