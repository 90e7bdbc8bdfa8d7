package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const employeeOrderColumns = `id, employee_id, status, total_price, created_at, prepared_at, delivered_at`

const createEmployeeOrder = `
INSERT INTO employee_orders (employee_id, status, total_price)
VALUES ($1, $2, $3)
RETURNING ` + employeeOrderColumns

type CreateEmployeeOrderParams struct {
	EmployeeID uuid.UUID
	Status     string
	TotalPrice pgtype.Numeric
}

func (q *Queries) CreateEmployeeOrder(ctx context.Context, arg CreateEmployeeOrderParams) (EmployeeOrder, error) {
	row := q.db.QueryRow(ctx, createEmployeeOrder, arg.EmployeeID, arg.Status, arg.TotalPrice)
	return scanEmployeeOrder(row)
}

const createEmployeeOrderItem = `
INSERT INTO employee_order_items (order_id, menu_id, menu_name, base_price, accompaniments, line_total)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, menu_id, menu_name, base_price, accompaniments, line_total
`

type CreateEmployeeOrderItemParams struct {
	OrderID        uuid.UUID
	MenuID         uuid.UUID
	MenuName       string
	BasePrice      pgtype.Numeric
	Accompaniments int32
	LineTotal      pgtype.Numeric
}

func (q *Queries) CreateEmployeeOrderItem(ctx context.Context, arg CreateEmployeeOrderItemParams) (EmployeeOrderItem, error) {
	row := q.db.QueryRow(ctx, createEmployeeOrderItem,
		arg.OrderID, arg.MenuID, arg.MenuName, arg.BasePrice, arg.Accompaniments, arg.LineTotal)
	var it EmployeeOrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuID, &it.MenuName, &it.BasePrice, &it.Accompaniments, &it.LineTotal)
	return it, err
}

const getEmployeeOrder = `
SELECT ` + employeeOrderColumns + `
FROM employee_orders
WHERE id = $1
`

func (q *Queries) GetEmployeeOrder(ctx context.Context, id uuid.UUID) (EmployeeOrder, error) {
	return scanEmployeeOrder(q.db.QueryRow(ctx, getEmployeeOrder, id))
}

const listEmployeeOrderItemsByOrder = `
SELECT id, order_id, menu_id, menu_name, base_price, accompaniments, line_total
FROM employee_order_items
WHERE order_id = $1
ORDER BY menu_name
`

func (q *Queries) ListEmployeeOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]EmployeeOrderItem, error) {
	rows, err := q.db.Query(ctx, listEmployeeOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EmployeeOrderItem
	for rows.Next() {
		var it EmployeeOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuID, &it.MenuName,
			&it.BasePrice, &it.Accompaniments, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const listEmployeeOrdersByEmployee = `
SELECT ` + employeeOrderColumns + `
FROM employee_orders
WHERE employee_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListEmployeeOrdersByEmployee(ctx context.Context, employeeID uuid.UUID) ([]EmployeeOrder, error) {
	rows, err := q.db.Query(ctx, listEmployeeOrdersByEmployee, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmployeeOrders(rows)
}

const listEmployeeOrders = `
SELECT ` + employeeOrderColumns + `
FROM employee_orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListEmployeeOrdersParams struct {
	Status    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListEmployeeOrders(ctx context.Context, arg ListEmployeeOrdersParams) ([]EmployeeOrder, error) {
	rows, err := q.db.Query(ctx, listEmployeeOrders,
		arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmployeeOrders(rows)
}

const listEmployeeOrdersSince = `
SELECT ` + employeeOrderColumns + `
FROM employee_orders
WHERE created_at >= $1
ORDER BY created_at
`

func (q *Queries) ListEmployeeOrdersSince(ctx context.Context, since time.Time) ([]EmployeeOrder, error) {
	rows, err := q.db.Query(ctx, listEmployeeOrdersSince, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmployeeOrders(rows)
}

const listEmployeeOrderItemsSince = `
SELECT i.id, i.order_id, i.menu_id, i.menu_name, i.base_price, i.accompaniments, i.line_total
FROM employee_order_items i
JOIN employee_orders o ON o.id = i.order_id
WHERE o.created_at >= $1 AND o.status <> $2
ORDER BY o.created_at
`

// ListEmployeeOrderItemsSince returns the items of every non-cancelled order
// created at or after the cutoff. Menu popularity rankings read from here.
func (q *Queries) ListEmployeeOrderItemsSince(ctx context.Context, since time.Time, excludeStatus string) ([]EmployeeOrderItem, error) {
	rows, err := q.db.Query(ctx, listEmployeeOrderItemsSince, since, excludeStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EmployeeOrderItem
	for rows.Next() {
		var it EmployeeOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuID, &it.MenuName,
			&it.BasePrice, &it.Accompaniments, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const updateEmployeeOrderStatus = `
UPDATE employee_orders
SET status = $2,
    prepared_at = COALESCE($4, prepared_at),
    delivered_at = COALESCE($5, delivered_at)
WHERE id = $1 AND status = $3
RETURNING ` + employeeOrderColumns

type UpdateEmployeeOrderStatusParams struct {
	ID          uuid.UUID
	Status      string
	PrevStatus  string
	PreparedAt  pgtype.Timestamptz
	DeliveredAt pgtype.Timestamptz
}

// UpdateEmployeeOrderStatus performs a compare-and-set on the previous status,
// mirroring UpdatePatientOrderStatus.
func (q *Queries) UpdateEmployeeOrderStatus(ctx context.Context, arg UpdateEmployeeOrderStatusParams) (EmployeeOrder, error) {
	row := q.db.QueryRow(ctx, updateEmployeeOrderStatus,
		arg.ID, arg.Status, arg.PrevStatus, arg.PreparedAt, arg.DeliveredAt)
	return scanEmployeeOrder(row)
}

const deleteOrderedEmployeeOrder = `
DELETE FROM employee_orders
WHERE id = $1 AND status = $2
RETURNING ` + employeeOrderColumns

// DeleteOrderedEmployeeOrder removes an order only while it still carries the
// given initial status. Items go with it via ON DELETE CASCADE.
func (q *Queries) DeleteOrderedEmployeeOrder(ctx context.Context, id uuid.UUID, initialStatus string) (EmployeeOrder, error) {
	return scanEmployeeOrder(q.db.QueryRow(ctx, deleteOrderedEmployeeOrder, id, initialStatus))
}

func scanEmployeeOrder(row interface{ Scan(...any) error }) (EmployeeOrder, error) {
	var o EmployeeOrder
	err := row.Scan(&o.ID, &o.EmployeeID, &o.Status, &o.TotalPrice,
		&o.CreatedAt, &o.PreparedAt, &o.DeliveredAt)
	return o, err
}

func collectEmployeeOrders(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]EmployeeOrder, error) {
	var items []EmployeeOrder
	for rows.Next() {
		var o EmployeeOrder
		if err := rows.Scan(&o.ID, &o.EmployeeID, &o.Status, &o.TotalPrice,
			&o.CreatedAt, &o.PreparedAt, &o.DeliveredAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
