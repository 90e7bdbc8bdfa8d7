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
	"github.com/shopspring/decimal"
)

// Errors specific to employee orders.
var (
	ErrEmployeeRequired       = errors.New("employee is required")
	ErrEmptyItems             = errors.New("items are required")
	ErrMenuNotFound           = errors.New("menu not found")
	ErrMenuUnavailable        = errors.New("menu is not available")
	ErrInvalidAccompaniments  = errors.New("accompaniments must be >= 0")
	ErrInvalidMenuID          = errors.New("invalid menu_id")
)

// accompanimentFlatFee is the cafeteria pricing rule: a selection with
// exactly two accompaniments is billed a flat 2000 FCFA instead of the
// menu's base price.
var accompanimentFlatFee = decimal.NewFromInt(2000)

// employeeOrderTransitions is the employee order state machine. Cancellation
// is only reachable before the meal is ready for delivery.
var employeeOrderTransitions = TransitionTable{
	enum.EmployeeOrderStatusOrdered: {
		enum.EmployeeOrderStatusPreparing,
		enum.EmployeeOrderStatusCancelled,
	},
	enum.EmployeeOrderStatusPreparing: {
		enum.EmployeeOrderStatusReadyForDelivery,
		enum.EmployeeOrderStatusCancelled,
	},
	enum.EmployeeOrderStatusReadyForDelivery: {
		enum.EmployeeOrderStatusDelivered,
	},
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EmployeeOrderStore defines the database methods needed by the employee
// order service. Satisfied by *database.Queries (and its WithTx variant).
type EmployeeOrderStore interface {
	GetEmployeeMenu(ctx context.Context, id uuid.UUID) (database.EmployeeMenu, error)
	CreateEmployeeOrder(ctx context.Context, arg database.CreateEmployeeOrderParams) (database.EmployeeOrder, error)
	CreateEmployeeOrderItem(ctx context.Context, arg database.CreateEmployeeOrderItemParams) (database.EmployeeOrderItem, error)
	GetEmployeeOrder(ctx context.Context, id uuid.UUID) (database.EmployeeOrder, error)
	ListEmployeeOrdersByEmployee(ctx context.Context, employeeID uuid.UUID) ([]database.EmployeeOrder, error)
	UpdateEmployeeOrderStatus(ctx context.Context, arg database.UpdateEmployeeOrderStatusParams) (database.EmployeeOrder, error)
	DeleteOrderedEmployeeOrder(ctx context.Context, id uuid.UUID, initialStatus string) (database.EmployeeOrder, error)
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
	CreateDelivery(ctx context.Context, arg database.CreateDeliveryParams) (database.Delivery, error)
}

// NewEmployeeOrderStore creates an EmployeeOrderStore from a DBTX (pool or
// tx), letting the service run the multi-row insert inside a transaction.
type NewEmployeeOrderStore func(db database.DBTX) EmployeeOrderStore

// EmployeeOrderService handles cafeteria order business logic.
type EmployeeOrderService struct {
	pool     TxBeginner
	store    EmployeeOrderStore
	newStore NewEmployeeOrderStore
	now      func() time.Time
}

func NewEmployeeOrderService(pool TxBeginner, store EmployeeOrderStore, newStore NewEmployeeOrderStore) *EmployeeOrderService {
	return &EmployeeOrderService{pool: pool, store: store, newStore: newStore, now: time.Now}
}

// CreateEmployeeOrderRequest is the validated input for a cafeteria order.
type CreateEmployeeOrderRequest struct {
	EmployeeID uuid.UUID
	Items      []CreateEmployeeOrderItemRequest
}

type CreateEmployeeOrderItemRequest struct {
	MenuID         string
	Accompaniments int32
}

// CreateEmployeeOrderResult is the created order with its priced items.
type CreateEmployeeOrderResult struct {
	Order database.EmployeeOrder
	Items []database.EmployeeOrderItem
}

// LineTotal prices one selection: a flat fee when the accompaniments count is
// exactly two, the menu base price otherwise. The rule is a threshold, not a
// per-unit multiplication.
func LineTotal(basePrice decimal.Decimal, accompaniments int32) decimal.Decimal {
	if accompaniments == 2 {
		return accompanimentFlatFee
	}
	return basePrice
}

// Create validates the selections, prices them, and inserts the order and its
// items in one transaction. The stored total is always the sum of the stored
// line totals.
func (s *EmployeeOrderService) Create(ctx context.Context, req CreateEmployeeOrderRequest) (*CreateEmployeeOrderResult, error) {
	if req.EmployeeID == uuid.Nil {
		return nil, ErrEmployeeRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	type pricedItem struct {
		menu           database.EmployeeMenu
		accompaniments int32
		lineTotal      decimal.Decimal
	}

	total := decimal.Zero
	priced := make([]pricedItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Accompaniments < 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidAccompaniments)
		}
		menuID, err := uuid.Parse(item.MenuID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuID)
		}
		menu, err := store.GetEmployeeMenu(ctx, menuID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrMenuNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get menu: %w", i, err)
		}
		if !menu.Available {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrMenuUnavailable)
		}

		lineTotal := LineTotal(numericToDecimal(menu.Price), item.Accompaniments)
		total = total.Add(lineTotal)
		priced = append(priced, pricedItem{
			menu:           menu,
			accompaniments: item.Accompaniments,
			lineTotal:      lineTotal,
		})
	}

	order, err := store.CreateEmployeeOrder(ctx, database.CreateEmployeeOrderParams{
		EmployeeID: req.EmployeeID,
		Status:     enum.EmployeeOrderStatusOrdered,
		TotalPrice: decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create employee order: %w", err)
	}

	items := make([]database.EmployeeOrderItem, 0, len(priced))
	for _, p := range priced {
		it, err := store.CreateEmployeeOrderItem(ctx, database.CreateEmployeeOrderItemParams{
			OrderID:        order.ID,
			MenuID:         p.menu.ID,
			MenuName:       p.menu.Name,
			BasePrice:      p.menu.Price,
			Accompaniments: p.accompaniments,
			LineTotal:      decimalToNumeric(p.lineTotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create employee order item: %w", err)
		}
		items = append(items, it)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateEmployeeOrderResult{Order: order, Items: items}, nil
}

// Transition moves an employee order along its state machine, stamping
// prepared_at and delivered_at the same way patient orders do.
func (s *EmployeeOrderService) Transition(ctx context.Context, orderID uuid.UUID, target string) (database.EmployeeOrder, error) {
	if !isEmployeeOrderStatus(target) {
		return database.EmployeeOrder{}, ErrInvalidStatus
	}

	current, err := s.store.GetEmployeeOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.EmployeeOrder{}, ErrOrderNotFound
		}
		return database.EmployeeOrder{}, fmt.Errorf("get employee order: %w", err)
	}

	if err := employeeOrderTransitions.Validate(current.Status, target); err != nil {
		return database.EmployeeOrder{}, err
	}

	params := database.UpdateEmployeeOrderStatusParams{
		ID:         orderID,
		Status:     target,
		PrevStatus: current.Status,
	}
	switch target {
	case enum.EmployeeOrderStatusPreparing:
		params.PreparedAt = pgtype.Timestamptz{Time: s.now(), Valid: true}
	case enum.EmployeeOrderStatusDelivered:
		params.DeliveredAt = pgtype.Timestamptz{Time: s.now(), Valid: true}
	}

	updated, err := s.store.UpdateEmployeeOrderStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.EmployeeOrder{}, ErrStatusChanged
		}
		return database.EmployeeOrder{}, fmt.Errorf("update employee order status: %w", err)
	}

	s.afterTransition(ctx, updated)
	return updated, nil
}

// Cancel wraps Transition to CANCELLED.
func (s *EmployeeOrderService) Cancel(ctx context.Context, orderID uuid.UUID) (database.EmployeeOrder, error) {
	return s.Transition(ctx, orderID, enum.EmployeeOrderStatusCancelled)
}

// Delete permanently removes an order while it is still ORDERED.
func (s *EmployeeOrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.store.DeleteOrderedEmployeeOrder(ctx, orderID, enum.EmployeeOrderStatusOrdered)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delete employee order: %w", err)
	}

	if _, getErr := s.store.GetEmployeeOrder(ctx, orderID); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get employee order: %w", getErr)
	}
	return ErrNotDeletable
}

// ListForEmployee re-fetches the employee's orders, most recent first.
func (s *EmployeeOrderService) ListForEmployee(ctx context.Context, employeeID uuid.UUID) ([]database.EmployeeOrder, error) {
	return s.store.ListEmployeeOrdersByEmployee(ctx, employeeID)
}

func (s *EmployeeOrderService) afterTransition(ctx context.Context, order database.EmployeeOrder) {
	msg := fmt.Sprintf("Commande cafétéria du %s : statut %s",
		order.CreatedAt.Format("02/01/2006"), order.Status)
	if _, err := s.store.CreateNotification(ctx, database.CreateNotificationParams{
		UserID:  order.EmployeeID,
		Message: msg,
	}); err != nil {
		log.Printf("ERROR: create notification for employee order %s: %v", order.ID, err)
	}

	if order.Status == enum.EmployeeOrderStatusReadyForDelivery {
		if _, err := s.store.CreateDelivery(ctx, database.CreateDeliveryParams{
			OrderKind: enum.DeliveryKindEmployee,
			OrderID:   order.ID,
			Status:    enum.DeliveryStatusPreparing,
		}); err != nil {
			log.Printf("ERROR: create delivery for employee order %s: %v", order.ID, err)
		}
	}
}

func isEmployeeOrderStatus(s string) bool {
	for _, st := range enum.EmployeeOrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// --- Numeric helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
