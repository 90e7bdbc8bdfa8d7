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

	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
)

// PatientStore defines the database methods needed by patient handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PatientStore interface {
	CreatePatient(ctx context.Context, arg database.CreatePatientParams) (database.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (database.Patient, error)
	ListPatients(ctx context.Context, includeDischarged bool) ([]database.Patient, error)
	UpdatePatient(ctx context.Context, arg database.UpdatePatientParams) (database.Patient, error)
	DischargePatient(ctx context.Context, id uuid.UUID) (database.Patient, error)
}

// PatientHandler handles patient record endpoints.
type PatientHandler struct {
	store PatientStore
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(store PatientStore) *PatientHandler {
	return &PatientHandler{store: store}
}

// RegisterRoutes registers patient endpoints on the given Chi router.
func (h *PatientHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/discharge", h.Discharge)
}

// --- Request / Response types ---

type patientRequest struct {
	FullName  string `json:"full_name"`
	Room      string `json:"room"`
	Service   string `json:"service"`
	Diet      string `json:"diet"`
	Allergies string `json:"allergies"`
}

type patientResponse struct {
	ID           uuid.UUID  `json:"id"`
	FullName     string     `json:"full_name"`
	Room         string     `json:"room"`
	Service      string     `json:"service"`
	Diet         string     `json:"diet"`
	Allergies    string     `json:"allergies,omitempty"`
	AdmittedAt   time.Time  `json:"admitted_at"`
	DischargedAt *time.Time `json:"discharged_at,omitempty"`
}

func toPatientResponse(p database.Patient) patientResponse {
	resp := patientResponse{
		ID:         p.ID,
		FullName:   p.FullName,
		Room:       p.Room,
		Service:    p.Service,
		Diet:       p.Diet,
		AdmittedAt: p.AdmittedAt,
	}
	if p.Allergies.Valid {
		resp.Allergies = p.Allergies.String
	}
	if p.DischargedAt.Valid {
		t := p.DischargedAt.Time
		resp.DischargedAt = &t
	}
	return resp
}

func (req patientRequest) validate() string {
	if req.FullName == "" {
		return "full_name is required"
	}
	if req.Room == "" {
		return "room is required"
	}
	if !enum.IsDiet(req.Diet) {
		return "invalid diet"
	}
	return ""
}

// --- Handlers ---

// Create admits a patient.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	allergies := pgtype.Text{}
	if req.Allergies != "" {
		allergies = pgtype.Text{String: req.Allergies, Valid: true}
	}

	patient, err := h.store.CreatePatient(r.Context(), database.CreatePatientParams{
		FullName:  req.FullName,
		Room:      req.Room,
		Service:   req.Service,
		Diet:      req.Diet,
		Allergies: allergies,
	})
	if err != nil {
		log.Printf("ERROR: create patient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toPatientResponse(patient))
}

// List returns admitted patients. Pass include_discharged=true to also see
// patients who have left.
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	includeDischarged := r.URL.Query().Get("include_discharged") == "true"

	patients, err := h.store.ListPatients(r.Context(), includeDischarged)
	if err != nil {
		log.Printf("ERROR: list patients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]patientResponse, 0, len(patients))
	for _, p := range patients {
		resp = append(resp, toPatientResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single patient.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient ID"})
		return
	}

	patient, err := h.store.GetPatient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "patient not found"})
			return
		}
		log.Printf("ERROR: get patient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

// Update replaces the patient's record fields.
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient ID"})
		return
	}

	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	allergies := pgtype.Text{}
	if req.Allergies != "" {
		allergies = pgtype.Text{String: req.Allergies, Valid: true}
	}

	patient, err := h.store.UpdatePatient(r.Context(), database.UpdatePatientParams{
		ID:        id,
		FullName:  req.FullName,
		Room:      req.Room,
		Service:   req.Service,
		Diet:      req.Diet,
		Allergies: allergies,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "patient not found"})
			return
		}
		log.Printf("ERROR: update patient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

// Discharge stamps the patient's exit. The record is kept; further meal
// orders for this patient are refused.
func (h *PatientHandler) Discharge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient ID"})
		return
	}

	patient, err := h.store.DischargePatient(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, toPatientResponse(patient))
		return
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: discharge patient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Nothing updated: either unknown or already discharged.
	if _, getErr := h.store.GetPatient(r.Context(), id); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "patient not found"})
			return
		}
		log.Printf("ERROR: get patient: %v", getErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusConflict, map[string]string{"error": "patient already discharged"})
}
