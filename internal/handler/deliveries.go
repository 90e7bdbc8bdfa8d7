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
)

// deliveryTransitions restricts how a delivery record may advance. FAILED
// deliveries can be retried.
var deliveryTransitions = map[string][]string{
	enum.DeliveryStatusPreparing:      {enum.DeliveryStatusOutForDelivery},
	enum.DeliveryStatusOutForDelivery: {enum.DeliveryStatusDelivered, enum.DeliveryStatusFailed},
	enum.DeliveryStatusFailed:         {enum.DeliveryStatusOutForDelivery},
}

// DeliveryStore defines the database methods needed by delivery handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DeliveryStore interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (database.Delivery, error)
	ListDeliveries(ctx context.Context, arg database.ListDeliveriesParams) ([]database.Delivery, error)
	AssignDeliveryAgent(ctx context.Context, arg database.AssignDeliveryAgentParams) (database.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, arg database.UpdateDeliveryStatusParams) (database.Delivery, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]database.User, error)
}

// DeliveryHandler handles tray delivery tracking endpoints.
type DeliveryHandler struct {
	store DeliveryStore
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(store DeliveryStore) *DeliveryHandler {
	return &DeliveryHandler{store: store}
}

// RegisterRoutes registers delivery endpoints on the given Chi router.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/agents", h.Agents)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/assign", h.Assign)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type assignDeliveryRequest struct {
	AgentID     string `json:"agent_id"`
	EstimatedAt string `json:"estimated_at"` // RFC 3339, optional
}

type deliveryResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderKind   string     `json:"order_kind"`
	OrderID     uuid.UUID  `json:"order_id"`
	AgentID     *uuid.UUID `json:"agent_id,omitempty"`
	Status      string     `json:"status"`
	EstimatedAt *time.Time `json:"estimated_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toDeliveryResponse(d database.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:        d.ID,
		OrderKind: d.OrderKind,
		OrderID:   d.OrderID,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
	if d.AgentID.Valid {
		id := uuid.UUID(d.AgentID.Bytes)
		resp.AgentID = &id
	}
	if d.EstimatedAt.Valid {
		t := d.EstimatedAt.Time
		resp.EstimatedAt = &t
	}
	if d.DeliveredAt.Valid {
		t := d.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	return resp
}

type agentResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

// --- Handlers ---

// List returns deliveries, filterable by status and assigned agent.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListDeliveriesParams{
		Limit:  100,
		Offset: 0,
	}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if a := q.Get("agent_id"); a != "" {
		agentID, err := uuid.Parse(a)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid agent_id"})
			return
		}
		params.AgentID = pgtype.UUID{Bytes: agentID, Valid: true}
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

	deliveries, err := h.store.ListDeliveries(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list deliveries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		resp = append(resp, toDeliveryResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Agents lists the users a delivery can be assigned to, for the dispatch
// dropdown.
func (h *DeliveryHandler) Agents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListUsersByRole(r.Context(), enum.UserRoleDelivery)
	if err != nil {
		log.Printf("ERROR: list delivery agents: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, agentResponse{ID: a.ID, FullName: a.FullName, Email: a.Email})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single delivery.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery ID"})
		return
	}

	delivery, err := h.store.GetDelivery(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
			return
		}
		log.Printf("ERROR: get delivery: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// Assign attaches a delivery agent (and optionally an ETA) to a delivery.
// The agent must exist and carry the DELIVERY role.
func (h *DeliveryHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery ID"})
		return
	}

	var req assignDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid agent_id"})
		return
	}

	agent, err := h.store.GetUserByID(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
			return
		}
		log.Printf("ERROR: get agent: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if agent.Role != enum.UserRoleDelivery {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user is not a delivery agent"})
		return
	}

	estimatedAt := pgtype.Timestamptz{}
	if req.EstimatedAt != "" {
		t, err := time.Parse(time.RFC3339, req.EstimatedAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid estimated_at, expected RFC 3339"})
			return
		}
		estimatedAt = pgtype.Timestamptz{Time: t, Valid: true}
	}

	delivery, err := h.store.AssignDeliveryAgent(r.Context(), database.AssignDeliveryAgentParams{
		ID:          id,
		AgentID:     pgtype.UUID{Bytes: agentID, Valid: true},
		EstimatedAt: estimatedAt,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
			return
		}
		log.Printf("ERROR: assign delivery agent: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// UpdateStatus moves a delivery along its lifecycle, stamping delivered_at
// when the tray arrives.
func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isDeliveryStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	current, err := h.store.GetDelivery(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
			return
		}
		log.Printf("ERROR: get delivery: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if !deliveryCan(current.Status, req.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "transition not allowed: " + current.Status + " -> " + req.Status,
		})
		return
	}

	deliveredAt := pgtype.Timestamptz{}
	if req.Status == enum.DeliveryStatusDelivered {
		deliveredAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}

	delivery, err := h.store.UpdateDeliveryStatus(r.Context(), database.UpdateDeliveryStatusParams{
		ID:          id,
		Status:      req.Status,
		DeliveredAt: deliveredAt,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
			return
		}
		log.Printf("ERROR: update delivery status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// --- Helpers ---

func deliveryCan(current, next string) bool {
	for _, allowed := range deliveryTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

func isDeliveryStatus(s string) bool {
	switch s {
	case enum.DeliveryStatusPreparing,
		enum.DeliveryStatusOutForDelivery,
		enum.DeliveryStatusDelivered,
		enum.DeliveryStatusFailed:
		return true
	}
	return false
}
