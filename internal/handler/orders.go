package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
	"github.com/clinirepas/api/internal/middleware"
	"github.com/clinirepas/api/internal/service"
	"github.com/clinirepas/api/internal/ws"
)

// PatientOrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.PatientOrderService; narrow interface for testability.
type PatientOrderServicer interface {
	Create(ctx context.Context, req service.CreatePatientOrderRequest) (database.PatientOrder, error)
	Transition(ctx context.Context, orderID uuid.UUID, target string) (database.PatientOrder, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (database.PatientOrder, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]database.PatientOrder, error)
}

// PatientOrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PatientOrderStore interface {
	GetPatientOrder(ctx context.Context, id uuid.UUID) (database.PatientOrder, error)
	ListPatientOrders(ctx context.Context, arg database.ListPatientOrdersParams) ([]database.PatientOrder, error)
}

// Broadcaster pushes events to connected WebSocket clients.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToRoles(roles []string, event ws.Event)
}

// PatientOrderHandler handles patient meal order endpoints.
type PatientOrderHandler struct {
	svc   PatientOrderServicer
	store PatientOrderStore
	hub   Broadcaster
}

// NewPatientOrderHandler creates a new PatientOrderHandler.
func NewPatientOrderHandler(svc PatientOrderServicer, store PatientOrderStore, hub Broadcaster) *PatientOrderHandler {
	return &PatientOrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterPatientRoutes registers order endpoints nested under a patient:
// /patients/{id}/orders
func (h *PatientOrderHandler) RegisterPatientRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.ListForPatient)
}

// RegisterRoutes registers root-level order endpoints: /orders
func (h *PatientOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/cancel", h.Cancel)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createPatientOrderRequest struct {
	MealType     string `json:"meal_type"`
	Menu         string `json:"menu"`
	Instructions string `json:"instructions"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type patientOrderResponse struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	MealType     string     `json:"meal_type"`
	Menu         string     `json:"menu"`
	Instructions string     `json:"instructions,omitempty"`
	Status       string     `json:"status"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	PreparedAt   *time.Time `json:"prepared_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

func toPatientOrderResponse(o database.PatientOrder) patientOrderResponse {
	resp := patientOrderResponse{
		ID:        o.ID,
		PatientID: o.PatientID,
		MealType:  o.MealType,
		Menu:      o.Menu,
		Status:    o.Status,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
	}
	if o.Instructions.Valid {
		resp.Instructions = o.Instructions.String
	}
	if o.PreparedAt.Valid {
		t := o.PreparedAt.Time
		resp.PreparedAt = &t
	}
	if o.DeliveredAt.Valid {
		t := o.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	return resp
}

// --- Handlers ---

// Create records a meal order for the patient in the URL. The authenticated
// user becomes the order's author.
func (h *PatientOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createPatientOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.Create(r.Context(), service.CreatePatientOrderRequest{
		PatientID:    patientID,
		MealType:     req.MealType,
		Menu:         req.Menu,
		Instructions: req.Instructions,
		CreatedBy:    claims.UserID,
	})
	if err != nil {
		writePatientOrderError(w, err)
		return
	}

	h.broadcast("patient_order.created", order,
		enum.UserRoleKitchen, enum.UserRoleAdmin)
	writeJSON(w, http.StatusCreated, toPatientOrderResponse(order))
}

// ListForPatient returns the patient's order history, most recent first.
func (h *PatientOrderHandler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient ID"})
		return
	}

	orders, err := h.svc.ListForPatient(r.Context(), patientID)
	if err != nil {
		log.Printf("ERROR: list patient orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]patientOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toPatientOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns orders across all patients, filterable by status, meal type
// and creation date range.
func (h *PatientOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListPatientOrdersParams{
		Limit:  100,
		Offset: 0,
	}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if m := q.Get("meal_type"); m != "" {
		params.MealType = pgtype.Text{String: m, Valid: true}
	}
	if sd := q.Get("start_date"); sd != "" {
		t, err := time.Parse("2006-01-02", sd)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date, expected YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if ed := q.Get("end_date"); ed != "" {
		t, err := time.Parse("2006-01-02", ed)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date, expected YYYY-MM-DD"})
			return
		}
		// Inclusive end date: cover the whole day.
		params.EndDate = pgtype.Timestamptz{Time: t.Add(24*time.Hour - time.Nanosecond), Valid: true}
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		params.Limit = int32(n)
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		params.Offset = int32(n)
	}

	orders, err := h.store.ListPatientOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]patientOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toPatientOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order.
func (h *PatientOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetPatientOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPatientOrderResponse(order))
}

// UpdateStatus moves an order along its lifecycle.
func (h *PatientOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.Transition(r.Context(), id, req.Status)
	if err != nil {
		writePatientOrderError(w, err)
		return
	}

	h.broadcast("patient_order.updated", order,
		enum.UserRoleNurse, enum.UserRoleKitchen, enum.UserRoleDelivery, enum.UserRoleAdmin)
	writeJSON(w, http.StatusOK, toPatientOrderResponse(order))
}

// Cancel moves an order to CANCELLED.
func (h *PatientOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writePatientOrderError(w, err)
		return
	}

	h.broadcast("patient_order.updated", order,
		enum.UserRoleNurse, enum.UserRoleKitchen, enum.UserRoleAdmin)
	writeJSON(w, http.StatusOK, toPatientOrderResponse(order))
}

// Delete removes a pending order entirely.
func (h *PatientOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writePatientOrderError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *PatientOrderHandler) broadcast(eventType string, order database.PatientOrder, roles ...string) {
	payload, err := json.Marshal(toPatientOrderResponse(order))
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToRoles(roles, ws.Event{Type: eventType, Payload: payload})
}

// writePatientOrderError maps service errors onto HTTP status codes.
func writePatientOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPatientRequired),
		errors.Is(err, service.ErrMenuRequired),
		errors.Is(err, service.ErrInvalidMealType),
		errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPatientNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPatientDischarged),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrStatusChanged),
		errors.Is(err, service.ErrNotDeletable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: patient order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
