package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const patientOrderColumns = `id, patient_id, meal_type, menu, instructions, status, created_by, created_at, prepared_at, delivered_at`

const createPatientOrder = `
INSERT INTO patient_orders (patient_id, meal_type, menu, instructions, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + patientOrderColumns

type CreatePatientOrderParams struct {
	PatientID    uuid.UUID
	MealType     string
	Menu         string
	Instructions pgtype.Text
	Status       string
	CreatedBy    uuid.UUID
}

func (q *Queries) CreatePatientOrder(ctx context.Context, arg CreatePatientOrderParams) (PatientOrder, error) {
	row := q.db.QueryRow(ctx, createPatientOrder,
		arg.PatientID, arg.MealType, arg.Menu, arg.Instructions, arg.Status, arg.CreatedBy)
	return scanPatientOrder(row)
}

const getPatientOrder = `
SELECT ` + patientOrderColumns + `
FROM patient_orders
WHERE id = $1
`

func (q *Queries) GetPatientOrder(ctx context.Context, id uuid.UUID) (PatientOrder, error) {
	return scanPatientOrder(q.db.QueryRow(ctx, getPatientOrder, id))
}

const listPatientOrdersByPatient = `
SELECT ` + patientOrderColumns + `
FROM patient_orders
WHERE patient_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListPatientOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]PatientOrder, error) {
	rows, err := q.db.Query(ctx, listPatientOrdersByPatient, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatientOrders(rows)
}

const listPatientOrders = `
SELECT ` + patientOrderColumns + `
FROM patient_orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR meal_type = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6
`

type ListPatientOrdersParams struct {
	Status    pgtype.Text
	MealType  pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListPatientOrders(ctx context.Context, arg ListPatientOrdersParams) ([]PatientOrder, error) {
	rows, err := q.db.Query(ctx, listPatientOrders,
		arg.Status, arg.MealType, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatientOrders(rows)
}

const listPatientOrdersSince = `
SELECT ` + patientOrderColumns + `
FROM patient_orders
WHERE created_at >= $1
ORDER BY created_at
`

// ListPatientOrdersSince feeds the aggregation pass; it returns every order
// created at or after the cutoff, oldest first.
func (q *Queries) ListPatientOrdersSince(ctx context.Context, since time.Time) ([]PatientOrder, error) {
	rows, err := q.db.Query(ctx, listPatientOrdersSince, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatientOrders(rows)
}

const updatePatientOrderStatus = `
UPDATE patient_orders
SET status = $2,
    prepared_at = COALESCE($4, prepared_at),
    delivered_at = COALESCE($5, delivered_at)
WHERE id = $1 AND status = $3
RETURNING ` + patientOrderColumns

type UpdatePatientOrderStatusParams struct {
	ID          uuid.UUID
	Status      string
	PrevStatus  string
	PreparedAt  pgtype.Timestamptz
	DeliveredAt pgtype.Timestamptz
}

// UpdatePatientOrderStatus performs a compare-and-set on the previous status.
// pgx.ErrNoRows means the order is missing or its status changed underneath us.
func (q *Queries) UpdatePatientOrderStatus(ctx context.Context, arg UpdatePatientOrderStatusParams) (PatientOrder, error) {
	row := q.db.QueryRow(ctx, updatePatientOrderStatus,
		arg.ID, arg.Status, arg.PrevStatus, arg.PreparedAt, arg.DeliveredAt)
	return scanPatientOrder(row)
}

const deletePendingPatientOrder = `
DELETE FROM patient_orders
WHERE id = $1 AND status = $2
RETURNING ` + patientOrderColumns

// DeletePendingPatientOrder removes an order only while it still carries the
// given initial status; the precondition is enforced in SQL.
func (q *Queries) DeletePendingPatientOrder(ctx context.Context, id uuid.UUID, initialStatus string) (PatientOrder, error) {
	return scanPatientOrder(q.db.QueryRow(ctx, deletePendingPatientOrder, id, initialStatus))
}

func scanPatientOrder(row interface{ Scan(...any) error }) (PatientOrder, error) {
	var o PatientOrder
	err := row.Scan(&o.ID, &o.PatientID, &o.MealType, &o.Menu, &o.Instructions,
		&o.Status, &o.CreatedBy, &o.CreatedAt, &o.PreparedAt, &o.DeliveredAt)
	return o, err
}

func collectPatientOrders(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]PatientOrder, error) {
	var items []PatientOrder
	for rows.Next() {
		var o PatientOrder
		if err := rows.Scan(&o.ID, &o.PatientID, &o.MealType, &o.Menu, &o.Instructions,
			&o.Status, &o.CreatedBy, &o.CreatedAt, &o.PreparedAt, &o.DeliveredAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
