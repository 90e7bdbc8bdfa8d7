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

// EmployeeOrderServicer defines the service methods needed by cafeteria order
// handlers. Satisfied by *service.EmployeeOrderService.
type EmployeeOrderServicer interface {
	Create(ctx context.Context, req service.CreateEmployeeOrderRequest) (*service.CreateEmployeeOrderResult, error)
	Transition(ctx context.Context, orderID uuid.UUID, target string) (database.EmployeeOrder, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (database.EmployeeOrder, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
	ListForEmployee(ctx context.Context, employeeID uuid.UUID) ([]database.EmployeeOrder, error)
}

// EmployeeOrderReadStore defines the database methods needed by cafeteria
// order read handlers. Satisfied by *database.Queries.
type EmployeeOrderReadStore interface {
	GetEmployeeOrder(ctx context.Context, id uuid.UUID) (database.EmployeeOrder, error)
	ListEmployeeOrders(ctx context.Context, arg database.ListEmployeeOrdersParams) ([]database.EmployeeOrder, error)
	ListEmployeeOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.EmployeeOrderItem, error)
}

// EmployeeOrderHandler handles cafeteria order endpoints.
type EmployeeOrderHandler struct {
	svc   EmployeeOrderServicer
	store EmployeeOrderReadStore
	hub   Broadcaster
}

// NewEmployeeOrderHandler creates a new EmployeeOrderHandler.
func NewEmployeeOrderHandler(svc EmployeeOrderServicer, store EmployeeOrderReadStore, hub Broadcaster) *EmployeeOrderHandler {
	return &EmployeeOrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers cafeteria order endpoints on the given Chi router.
func (h *EmployeeOrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/mine", h.ListMine)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/cancel", h.Cancel)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createEmployeeOrderRequest struct {
	Items []createEmployeeOrderItemRequest `json:"items"`
}

type createEmployeeOrderItemRequest struct {
	MenuID         string `json:"menu_id"`
	Accompaniments int32  `json:"accompaniments"`
}

type employeeOrderResponse struct {
	ID          uuid.UUID                   `json:"id"`
	EmployeeID  uuid.UUID                   `json:"employee_id"`
	Status      string                      `json:"status"`
	TotalPrice  string                      `json:"total_price"`
	CreatedAt   time.Time                   `json:"created_at"`
	PreparedAt  *time.Time                  `json:"prepared_at,omitempty"`
	DeliveredAt *time.Time                  `json:"delivered_at,omitempty"`
	Items       []employeeOrderItemResponse `json:"items,omitempty"`
}

type employeeOrderItemResponse struct {
	ID             uuid.UUID `json:"id"`
	MenuID         uuid.UUID `json:"menu_id"`
	MenuName       string    `json:"menu_name"`
	BasePrice      string    `json:"base_price"`
	Accompaniments int32     `json:"accompaniments"`
	LineTotal      string    `json:"line_total"`
}

func toEmployeeOrderResponse(o database.EmployeeOrder, items []database.EmployeeOrderItem) employeeOrderResponse {
	resp := employeeOrderResponse{
		ID:         o.ID,
		EmployeeID: o.EmployeeID,
		Status:     o.Status,
		TotalPrice: numericString(o.TotalPrice),
		CreatedAt:  o.CreatedAt,
	}
	if o.PreparedAt.Valid {
		t := o.PreparedAt.Time
		resp.PreparedAt = &t
	}
	if o.DeliveredAt.Valid {
		t := o.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	for _, it := range items {
		resp.Items = append(resp.Items, employeeOrderItemResponse{
			ID:             it.ID,
			MenuID:         it.MenuID,
			MenuName:       it.MenuName,
			BasePrice:      numericString(it.BasePrice),
			Accompaniments: it.Accompaniments,
			LineTotal:      numericString(it.LineTotal),
		})
	}
	return resp
}

// --- Handlers ---

// Create places a cafeteria order for the authenticated employee.
func (h *EmployeeOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createEmployeeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.CreateEmployeeOrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.CreateEmployeeOrderItemRequest{
			MenuID:         it.MenuID,
			Accompaniments: it.Accompaniments,
		})
	}

	result, err := h.svc.Create(r.Context(), service.CreateEmployeeOrderRequest{
		EmployeeID: claims.UserID,
		Items:      items,
	})
	if err != nil {
		writeEmployeeOrderError(w, err)
		return
	}

	resp := toEmployeeOrderResponse(result.Order, result.Items)
	h.broadcast("employee_order.created", resp, enum.UserRoleKitchen, enum.UserRoleAdmin)
	writeJSON(w, http.StatusCreated, resp)
}

// List returns orders across all employees, filterable by status and date
// range. Kitchen and admin screens read from here.
func (h *EmployeeOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListEmployeeOrdersParams{
		Limit:  100,
		Offset: 0,
	}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
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

	orders, err := h.store.ListEmployeeOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list employee orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]employeeOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toEmployeeOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListMine returns the authenticated employee's own orders.
func (h *EmployeeOrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orders, err := h.svc.ListForEmployee(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: list own employee orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]employeeOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toEmployeeOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order with its items.
func (h *EmployeeOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetEmployeeOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get employee order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListEmployeeOrderItemsByOrder(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list employee order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeOrderResponse(order, items))
}

// UpdateStatus moves an order along its lifecycle.
func (h *EmployeeOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
		writeEmployeeOrderError(w, err)
		return
	}

	resp := toEmployeeOrderResponse(order, nil)
	h.broadcast("employee_order.updated", resp,
		enum.UserRoleEmployee, enum.UserRoleKitchen, enum.UserRoleDelivery, enum.UserRoleAdmin)
	writeJSON(w, http.StatusOK, resp)
}

// Cancel moves an order to CANCELLED. Only reachable before the meal is
// ready for delivery.
func (h *EmployeeOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeEmployeeOrderError(w, err)
		return
	}

	resp := toEmployeeOrderResponse(order, nil)
	h.broadcast("employee_order.updated", resp,
		enum.UserRoleEmployee, enum.UserRoleKitchen, enum.UserRoleAdmin)
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes an order that has not entered preparation yet.
func (h *EmployeeOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeEmployeeOrderError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *EmployeeOrderHandler) broadcast(eventType string, resp employeeOrderResponse, roles ...string) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToRoles(roles, ws.Event{Type: eventType, Payload: payload})
}

// writeEmployeeOrderError maps service errors onto HTTP status codes.
func writeEmployeeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmployeeRequired),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidMenuID),
		errors.Is(err, service.ErrInvalidAccompaniments),
		errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrMenuNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrMenuUnavailable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrStatusChanged),
		errors.Is(err, service.ErrNotDeletable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: employee order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
