package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

// mockTx implements pgx.Tx with only the methods the service touches.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { return nil }

type mockPool struct {
	tx *mockTx
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.tx == nil {
		m.tx = &mockTx{}
	}
	return m.tx, nil
}

type mockEmployeeOrderStore struct {
	menus map[uuid.UUID]database.EmployeeMenu

	getOrderFn      func(ctx context.Context, id uuid.UUID) (database.EmployeeOrder, error)
	updateStatusFn  func(ctx context.Context, arg database.UpdateEmployeeOrderStatusParams) (database.EmployeeOrder, error)
	deleteOrderedFn func(ctx context.Context, id uuid.UUID, initialStatus string) (database.EmployeeOrder, error)

	createdOrder database.EmployeeOrder
	createdItems []database.EmployeeOrderItem
	updateCalls  int
}

func (m *mockEmployeeOrderStore) GetEmployeeMenu(ctx context.Context, id uuid.UUID) (database.EmployeeMenu, error) {
	menu, ok := m.menus[id]
	if !ok {
		return database.EmployeeMenu{}, pgx.ErrNoRows
	}
	return menu, nil
}

func (m *mockEmployeeOrderStore) CreateEmployeeOrder(ctx context.Context, arg database.CreateEmployeeOrderParams) (database.EmployeeOrder, error) {
	m.createdOrder = database.EmployeeOrder{
		ID:         uuid.New(),
		EmployeeID: arg.EmployeeID,
		Status:     arg.Status,
		TotalPrice: arg.TotalPrice,
		CreatedAt:  time.Now(),
	}
	return m.createdOrder, nil
}

func (m *mockEmployeeOrderStore) CreateEmployeeOrderItem(ctx context.Context, arg database.CreateEmployeeOrderItemParams) (database.EmployeeOrderItem, error) {
	it := database.EmployeeOrderItem{
		ID:             uuid.New(),
		OrderID:        arg.OrderID,
		MenuID:         arg.MenuID,
		MenuName:       arg.MenuName,
		BasePrice:      arg.BasePrice,
		Accompaniments: arg.Accompaniments,
		LineTotal:      arg.LineTotal,
	}
	m.createdItems = append(m.createdItems, it)
	return it, nil
}

func (m *mockEmployeeOrderStore) GetEmployeeOrder(ctx context.Context, id uuid.UUID) (database.EmployeeOrder, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.EmployeeOrder{}, pgx.ErrNoRows
}

func (m *mockEmployeeOrderStore) ListEmployeeOrdersByEmployee(ctx context.Context, employeeID uuid.UUID) ([]database.EmployeeOrder, error) {
	return nil, nil
}

func (m *mockEmployeeOrderStore) UpdateEmployeeOrderStatus(ctx context.Context, arg database.UpdateEmployeeOrderStatusParams) (database.EmployeeOrder, error) {
	m.updateCalls++
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, arg)
	}
	return database.EmployeeOrder{}, pgx.ErrNoRows
}

func (m *mockEmployeeOrderStore) DeleteOrderedEmployeeOrder(ctx context.Context, id uuid.UUID, initialStatus string) (database.EmployeeOrder, error) {
	if m.deleteOrderedFn != nil {
		return m.deleteOrderedFn(ctx, id, initialStatus)
	}
	return database.EmployeeOrder{}, pgx.ErrNoRows
}

func (m *mockEmployeeOrderStore) CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error) {
	return database.Notification{}, nil
}

func (m *mockEmployeeOrderStore) CreateDelivery(ctx context.Context, arg database.CreateDeliveryParams) (database.Delivery, error) {
	return database.Delivery{}, nil
}

func newEmployeeOrderService(store *mockEmployeeOrderStore) *EmployeeOrderService {
	return NewEmployeeOrderService(&mockPool{}, store, func(db database.DBTX) EmployeeOrderStore {
		return store
	})
}

func menuPriced(price string) database.EmployeeMenu {
	d, _ := decimal.NewFromString(price)
	return database.EmployeeMenu{
		ID:        uuid.New(),
		Name:      "Poulet braisé",
		Price:     decimalToNumeric(d),
		Available: true,
	}
}

// --- Pricing ---

func TestLineTotal(t *testing.T) {
	base := decimal.NewFromInt(3500)

	tests := []struct {
		accompaniments int32
		want           string
	}{
		{1, "3500"},
		{2, "2000"}, // flat fee kicks in at exactly two
		{3, "3500"},
	}

	for _, tt := range tests {
		got := LineTotal(base, tt.accompaniments)
		if got.String() != tt.want {
			t.Errorf("LineTotal(3500, %d) = %s, want %s", tt.accompaniments, got, tt.want)
		}
	}
}

// --- Create ---

func TestCreateEmployeeOrderValidation(t *testing.T) {
	store := &mockEmployeeOrderStore{menus: map[uuid.UUID]database.EmployeeMenu{}}
	svc := newEmployeeOrderService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateEmployeeOrderRequest{Items: []CreateEmployeeOrderItemRequest{{MenuID: uuid.NewString()}}}); !errors.Is(err, ErrEmployeeRequired) {
		t.Errorf("missing employee: got %v", err)
	}
	if _, err := svc.Create(ctx, CreateEmployeeOrderRequest{EmployeeID: uuid.New()}); !errors.Is(err, ErrEmptyItems) {
		t.Errorf("empty items: got %v", err)
	}
	if _, err := svc.Create(ctx, CreateEmployeeOrderRequest{
		EmployeeID: uuid.New(),
		Items:      []CreateEmployeeOrderItemRequest{{MenuID: "not-a-uuid"}},
	}); !errors.Is(err, ErrInvalidMenuID) {
		t.Errorf("bad menu id: got %v", err)
	}
	if _, err := svc.Create(ctx, CreateEmployeeOrderRequest{
		EmployeeID: uuid.New(),
		Items:      []CreateEmployeeOrderItemRequest{{MenuID: uuid.NewString(), Accompaniments: 1}},
	}); !errors.Is(err, ErrMenuNotFound) {
		t.Errorf("unknown menu: got %v", err)
	}
	if _, err := svc.Create(ctx, CreateEmployeeOrderRequest{
		EmployeeID: uuid.New(),
		Items:      []CreateEmployeeOrderItemRequest{{MenuID: uuid.NewString(), Accompaniments: -1}},
	}); !errors.Is(err, ErrInvalidAccompaniments) {
		t.Errorf("negative accompaniments: got %v", err)
	}
}

func TestCreateEmployeeOrderUnavailableMenu(t *testing.T) {
	menu := menuPriced("3000")
	menu.Available = false
	store := &mockEmployeeOrderStore{menus: map[uuid.UUID]database.EmployeeMenu{menu.ID: menu}}
	svc := newEmployeeOrderService(store)

	_, err := svc.Create(context.Background(), CreateEmployeeOrderRequest{
		EmployeeID: uuid.New(),
		Items:      []CreateEmployeeOrderItemRequest{{MenuID: menu.ID.String(), Accompaniments: 1}},
	})
	if !errors.Is(err, ErrMenuUnavailable) {
		t.Errorf("Create: got %v, want ErrMenuUnavailable", err)
	}
}

func TestCreateEmployeeOrderTotalIsSumOfLines(t *testing.T) {
	menuA := menuPriced("3500") // one accompaniment, billed base
	menuB := menuPriced("4500") // two accompaniments, billed flat 2000
	store := &mockEmployeeOrderStore{menus: map[uuid.UUID]database.EmployeeMenu{
		menuA.ID: menuA,
		menuB.ID: menuB,
	}}
	pool := &mockPool{}
	svc := NewEmployeeOrderService(pool, store, func(db database.DBTX) EmployeeOrderStore { return store })

	result, err := svc.Create(context.Background(), CreateEmployeeOrderRequest{
		EmployeeID: uuid.New(),
		Items: []CreateEmployeeOrderItemRequest{
			{MenuID: menuA.ID.String(), Accompaniments: 1},
			{MenuID: menuB.ID.String(), Accompaniments: 2},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !pool.tx.committed {
		t.Error("transaction not committed")
	}

	if result.Order.Status != enum.EmployeeOrderStatusOrdered {
		t.Errorf("status: got %s", result.Order.Status)
	}
	total := numericToDecimal(result.Order.TotalPrice)
	if !total.Equal(decimal.NewFromInt(5500)) {
		t.Errorf("total: got %s, want 5500", total)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items: got %d", len(result.Items))
	}
	if lt := numericToDecimal(result.Items[1].LineTotal); !lt.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("flat-fee line total: got %s, want 2000", lt)
	}
}

// --- Transition ---

func storeWithEmployeeOrder(orderID uuid.UUID, status string) *mockEmployeeOrderStore {
	store := &mockEmployeeOrderStore{}
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.EmployeeOrder, error) {
		return database.EmployeeOrder{ID: orderID, EmployeeID: uuid.New(), Status: status, CreatedAt: time.Now()}, nil
	}
	store.updateStatusFn = func(ctx context.Context, arg database.UpdateEmployeeOrderStatusParams) (database.EmployeeOrder, error) {
		return database.EmployeeOrder{
			ID:          arg.ID,
			EmployeeID:  uuid.New(),
			Status:      arg.Status,
			PreparedAt:  arg.PreparedAt,
			DeliveredAt: arg.DeliveredAt,
			CreatedAt:   time.Now(),
		}, nil
	}
	return store
}

func TestEmployeeOrderTransitionTable(t *testing.T) {
	statuses := enum.EmployeeOrderStatuses
	valid := map[[2]string]bool{
		{enum.EmployeeOrderStatusOrdered, enum.EmployeeOrderStatusPreparing}:          true,
		{enum.EmployeeOrderStatusOrdered, enum.EmployeeOrderStatusCancelled}:          true,
		{enum.EmployeeOrderStatusPreparing, enum.EmployeeOrderStatusReadyForDelivery}: true,
		{enum.EmployeeOrderStatusPreparing, enum.EmployeeOrderStatusCancelled}:        true,
		{enum.EmployeeOrderStatusReadyForDelivery, enum.EmployeeOrderStatusDelivered}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if from == to {
				continue
			}
			t.Run(from+"->"+to, func(t *testing.T) {
				orderID := uuid.New()
				store := storeWithEmployeeOrder(orderID, from)
				svc := newEmployeeOrderService(store)

				updated, err := svc.Transition(context.Background(), orderID, to)
				if valid[[2]string{from, to}] {
					if err != nil {
						t.Fatalf("Transition: %v", err)
					}
					if updated.Status != to {
						t.Errorf("status: got %s, want %s", updated.Status, to)
					}
				} else {
					if !errors.Is(err, ErrInvalidTransition) {
						t.Fatalf("Transition: got %v, want ErrInvalidTransition", err)
					}
					if store.updateCalls != 0 {
						t.Error("store updated despite invalid transition")
					}
				}
			})
		}
	}
}

func TestEmployeeOrderDeliveredStampsTimestamp(t *testing.T) {
	orderID := uuid.New()
	store := storeWithEmployeeOrder(orderID, enum.EmployeeOrderStatusReadyForDelivery)
	svc := newEmployeeOrderService(store)

	updated, err := svc.Transition(context.Background(), orderID, enum.EmployeeOrderStatusDelivered)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !updated.DeliveredAt.Valid {
		t.Error("delivered_at not set")
	}
}

func TestDeleteEmployeeOrder(t *testing.T) {
	orderID := uuid.New()

	t.Run("ordered deleted", func(t *testing.T) {
		store := &mockEmployeeOrderStore{
			deleteOrderedFn: func(ctx context.Context, id uuid.UUID, initialStatus string) (database.EmployeeOrder, error) {
				if initialStatus != enum.EmployeeOrderStatusOrdered {
					t.Errorf("initial status: got %s", initialStatus)
				}
				return database.EmployeeOrder{ID: id}, nil
			},
		}
		if err := newEmployeeOrderService(store).Delete(context.Background(), orderID); err != nil {
			t.Errorf("Delete: %v", err)
		}
	})

	t.Run("in progress refused", func(t *testing.T) {
		store := &mockEmployeeOrderStore{
			getOrderFn: func(ctx context.Context, id uuid.UUID) (database.EmployeeOrder, error) {
				return database.EmployeeOrder{ID: id, Status: enum.EmployeeOrderStatusPreparing}, nil
			},
		}
		err := newEmployeeOrderService(store).Delete(context.Background(), orderID)
		if !errors.Is(err, ErrNotDeletable) {
			t.Errorf("Delete: got %v, want ErrNotDeletable", err)
		}
	})
}
