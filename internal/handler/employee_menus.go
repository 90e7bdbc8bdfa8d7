package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/clinirepas/api/internal/database"
)

// EmployeeMenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type EmployeeMenuStore interface {
	CreateEmployeeMenu(ctx context.Context, arg database.CreateEmployeeMenuParams) (database.EmployeeMenu, error)
	GetEmployeeMenu(ctx context.Context, id uuid.UUID) (database.EmployeeMenu, error)
	ListEmployeeMenus(ctx context.Context, includeUnavailable bool) ([]database.EmployeeMenu, error)
	UpdateEmployeeMenu(ctx context.Context, arg database.UpdateEmployeeMenuParams) (database.EmployeeMenu, error)
	SetEmployeeMenuAvailability(ctx context.Context, arg database.SetEmployeeMenuAvailabilityParams) (database.EmployeeMenu, error)
}

// EmployeeMenuHandler handles cafeteria menu endpoints.
type EmployeeMenuHandler struct {
	store EmployeeMenuStore
}

// NewEmployeeMenuHandler creates a new EmployeeMenuHandler.
func NewEmployeeMenuHandler(store EmployeeMenuStore) *EmployeeMenuHandler {
	return &EmployeeMenuHandler{store: store}
}

// Routes are registered by the router directly: reads are open to any
// authenticated user while writes sit behind the admin role group.

// --- Request / Response types ---

type employeeMenuRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Available   *bool  `json:"available"`
	PhotoURL    string `json:"photo_url"`
}

type setAvailabilityRequest struct {
	Available bool `json:"available"`
}

type employeeMenuResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Available   bool      `json:"available"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEmployeeMenuResponse(m database.EmployeeMenu) employeeMenuResponse {
	resp := employeeMenuResponse{
		ID:        m.ID,
		Name:      m.Name,
		Price:     numericString(m.Price),
		Available: m.Available,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Description.Valid {
		resp.Description = m.Description.String
	}
	if m.PhotoURL.Valid {
		resp.PhotoURL = m.PhotoURL.String
	}
	return resp
}

// parsePrice accepts a positive decimal string.
func parsePrice(s string) (pgtype.Numeric, string) {
	if s == "" {
		return pgtype.Numeric{}, "price is required"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, "invalid price"
	}
	if d.Sign() <= 0 {
		return pgtype.Numeric{}, "price must be positive"
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, "invalid price"
	}
	return n, ""
}

func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	return val.(string)
}

// --- Handlers ---

// Create adds a menu to the cafeteria offer.
func (h *EmployeeMenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req employeeMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, msg := parsePrice(req.Price)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	description := pgtype.Text{}
	if req.Description != "" {
		description = pgtype.Text{String: req.Description, Valid: true}
	}
	photoURL := pgtype.Text{}
	if req.PhotoURL != "" {
		photoURL = pgtype.Text{String: req.PhotoURL, Valid: true}
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	menu, err := h.store.CreateEmployeeMenu(r.Context(), database.CreateEmployeeMenuParams{
		Name:        req.Name,
		Description: description,
		Price:       price,
		Available:   available,
		PhotoURL:    photoURL,
	})
	if err != nil {
		log.Printf("ERROR: create menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeMenuResponse(menu))
}

// List returns available menus. Pass include_unavailable=true for the full
// catalog (admin screens).
func (h *EmployeeMenuHandler) List(w http.ResponseWriter, r *http.Request) {
	includeUnavailable := r.URL.Query().Get("include_unavailable") == "true"

	menus, err := h.store.ListEmployeeMenus(r.Context(), includeUnavailable)
	if err != nil {
		log.Printf("ERROR: list menus: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]employeeMenuResponse, 0, len(menus))
	for _, m := range menus {
		resp = append(resp, toEmployeeMenuResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single menu.
func (h *EmployeeMenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	menu, err := h.store.GetEmployeeMenu(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: get menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeMenuResponse(menu))
}

// Update replaces a menu's editable fields. Availability has its own endpoint.
func (h *EmployeeMenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	var req employeeMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, msg := parsePrice(req.Price)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	description := pgtype.Text{}
	if req.Description != "" {
		description = pgtype.Text{String: req.Description, Valid: true}
	}
	photoURL := pgtype.Text{}
	if req.PhotoURL != "" {
		photoURL = pgtype.Text{String: req.PhotoURL, Valid: true}
	}

	menu, err := h.store.UpdateEmployeeMenu(r.Context(), database.UpdateEmployeeMenuParams{
		ID:          id,
		Name:        req.Name,
		Description: description,
		Price:       price,
		PhotoURL:    photoURL,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: update menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeMenuResponse(menu))
}

// SetAvailability toggles whether the menu can be ordered. Existing orders
// keep their snapshot of the menu either way.
func (h *EmployeeMenuHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	menu, err := h.store.SetEmployeeMenuAvailability(r.Context(), database.SetEmployeeMenuAvailabilityParams{
		ID:        id,
		Available: req.Available,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: set menu availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeMenuResponse(menu))
}
