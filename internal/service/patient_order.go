package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Errors returned by the order services.
var (
	ErrPatientRequired    = errors.New("patient is required")
	ErrMenuRequired       = errors.New("menu is required")
	ErrInvalidMealType    = errors.New("invalid meal_type")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrPatientDischarged  = errors.New("patient has been discharged")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidTransition  = errors.New("transition not allowed")
	ErrStatusChanged      = errors.New("order status changed, please retry")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotDeletable       = errors.New("only pending orders can be deleted")
)

// patientOrderTransitions is the patient order state machine. DELIVERED and
// CANCELLED are terminal.
var patientOrderTransitions = TransitionTable{
	enum.PatientOrderStatusPendingApproval: {
		enum.PatientOrderStatusPreparing,
		enum.PatientOrderStatusCancelled,
	},
	enum.PatientOrderStatusPreparing: {
		enum.PatientOrderStatusDelivered,
		enum.PatientOrderStatusCancelled,
	},
}

// PatientOrderStore defines the database methods needed by the patient order
// service. Satisfied by *database.Queries; narrow interface for testability.
type PatientOrderStore interface {
	GetPatient(ctx context.Context, id uuid.UUID) (database.Patient, error)
	CreatePatientOrder(ctx context.Context, arg database.CreatePatientOrderParams) (database.PatientOrder, error)
	GetPatientOrder(ctx context.Context, id uuid.UUID) (database.PatientOrder, error)
	ListPatientOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]database.PatientOrder, error)
	UpdatePatientOrderStatus(ctx context.Context, arg database.UpdatePatientOrderStatusParams) (database.PatientOrder, error)
	DeletePendingPatientOrder(ctx context.Context, id uuid.UUID, initialStatus string) (database.PatientOrder, error)
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
	CreateDelivery(ctx context.Context, arg database.CreateDeliveryParams) (database.Delivery, error)
}

// PatientOrderService mediates all writes to patient order status.
type PatientOrderService struct {
	store PatientOrderStore
	now   func() time.Time
}

func NewPatientOrderService(store PatientOrderStore) *PatientOrderService {
	return &PatientOrderService{store: store, now: time.Now}
}

// CreatePatientOrderRequest is the validated input for a new meal order.
type CreatePatientOrderRequest struct {
	PatientID    uuid.UUID
	MealType     string
	Menu         string
	Instructions string
	CreatedBy    uuid.UUID
}

// Create validates the request and inserts the order in the initial
// PENDING_APPROVAL state.
func (s *PatientOrderService) Create(ctx context.Context, req CreatePatientOrderRequest) (database.PatientOrder, error) {
	if req.PatientID == uuid.Nil {
		return database.PatientOrder{}, ErrPatientRequired
	}
	if req.Menu == "" {
		return database.PatientOrder{}, ErrMenuRequired
	}
	if !enum.IsMealType(req.MealType) {
		return database.PatientOrder{}, ErrInvalidMealType
	}

	patient, err := s.store.GetPatient(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.PatientOrder{}, ErrPatientNotFound
		}
		return database.PatientOrder{}, fmt.Errorf("get patient: %w", err)
	}
	if patient.DischargedAt.Valid {
		return database.PatientOrder{}, ErrPatientDischarged
	}

	instructions := pgtype.Text{}
	if req.Instructions != "" {
		instructions = pgtype.Text{String: req.Instructions, Valid: true}
	}

	order, err := s.store.CreatePatientOrder(ctx, database.CreatePatientOrderParams{
		PatientID:    req.PatientID,
		MealType:     req.MealType,
		Menu:         req.Menu,
		Instructions: instructions,
		Status:       enum.PatientOrderStatusPendingApproval,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return database.PatientOrder{}, fmt.Errorf("create patient order: %w", err)
	}
	return order, nil
}

// Transition moves an order along the state machine. Entering PREPARING
// stamps prepared_at and opens a delivery record; entering DELIVERED stamps
// delivered_at. An edge outside the table fails with ErrInvalidTransition
// and the stored order is left untouched.
func (s *PatientOrderService) Transition(ctx context.Context, orderID uuid.UUID, target string) (database.PatientOrder, error) {
	if !isPatientOrderStatus(target) {
		return database.PatientOrder{}, ErrInvalidStatus
	}

	current, err := s.store.GetPatientOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.PatientOrder{}, ErrOrderNotFound
		}
		return database.PatientOrder{}, fmt.Errorf("get patient order: %w", err)
	}

	if err := patientOrderTransitions.Validate(current.Status, target); err != nil {
		return database.PatientOrder{}, err
	}

	params := database.UpdatePatientOrderStatusParams{
		ID:         orderID,
		Status:     target,
		PrevStatus: current.Status,
	}
	switch target {
	case enum.PatientOrderStatusPreparing:
		params.PreparedAt = pgtype.Timestamptz{Time: s.now(), Valid: true}
	case enum.PatientOrderStatusDelivered:
		params.DeliveredAt = pgtype.Timestamptz{Time: s.now(), Valid: true}
	}

	updated, err := s.store.UpdatePatientOrderStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Someone else moved the order between our read and write.
			return database.PatientOrder{}, ErrStatusChanged
		}
		return database.PatientOrder{}, fmt.Errorf("update patient order status: %w", err)
	}

	s.afterTransition(ctx, updated)
	return updated, nil
}

// Cancel is a convenience wrapper over Transition to CANCELLED. The human
// confirmation the workflow expects happens at the call site.
func (s *PatientOrderService) Cancel(ctx context.Context, orderID uuid.UUID) (database.PatientOrder, error) {
	return s.Transition(ctx, orderID, enum.PatientOrderStatusCancelled)
}

// Delete permanently removes an order. Only allowed while the order is still
// PENDING_APPROVAL so in-progress and completed orders keep their audit trail.
func (s *PatientOrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.store.DeletePendingPatientOrder(ctx, orderID, enum.PatientOrderStatusPendingApproval)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delete patient order: %w", err)
	}

	// Nothing deleted: either the order is gone or it left the pending state.
	if _, getErr := s.store.GetPatientOrder(ctx, orderID); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get patient order: %w", getErr)
	}
	return ErrNotDeletable
}

// ListForPatient re-fetches the patient's orders, most recent first. No
// caching: every call reflects current store state.
func (s *PatientOrderService) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]database.PatientOrder, error) {
	return s.store.ListPatientOrdersByPatient(ctx, patientID)
}

// afterTransition records the side effects of a successful status change:
// a notification for the ordering nurse and, when preparation starts, a
// delivery tracking record. Neither failure rolls back the transition.
func (s *PatientOrderService) afterTransition(ctx context.Context, order database.PatientOrder) {
	msg := fmt.Sprintf("Commande repas du %s : statut %s",
		order.CreatedAt.Format("02/01/2006"), order.Status)
	if _, err := s.store.CreateNotification(ctx, database.CreateNotificationParams{
		UserID:  order.CreatedBy,
		Message: msg,
	}); err != nil {
		log.Printf("ERROR: create notification for order %s: %v", order.ID, err)
	}

	if order.Status == enum.PatientOrderStatusPreparing {
		if _, err := s.store.CreateDelivery(ctx, database.CreateDeliveryParams{
			OrderKind: enum.DeliveryKindPatient,
			OrderID:   order.ID,
			Status:    enum.DeliveryStatusPreparing,
		}); err != nil {
			log.Printf("ERROR: create delivery for order %s: %v", order.ID, err)
		}
	}
}

func isPatientOrderStatus(s string) bool {
	for _, st := range enum.PatientOrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}
