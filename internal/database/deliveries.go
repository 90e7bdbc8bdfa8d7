package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const deliveryColumns = `id, order_kind, order_id, agent_id, status, estimated_at, delivered_at, created_at`

const createDelivery = `
INSERT INTO deliveries (order_kind, order_id, status)
VALUES ($1, $2, $3)
RETURNING ` + deliveryColumns

type CreateDeliveryParams struct {
	OrderKind string
	OrderID   uuid.UUID
	Status    string
}

func (q *Queries) CreateDelivery(ctx context.Context, arg CreateDeliveryParams) (Delivery, error) {
	row := q.db.QueryRow(ctx, createDelivery, arg.OrderKind, arg.OrderID, arg.Status)
	return scanDelivery(row)
}

const getDelivery = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE id = $1
`

func (q *Queries) GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, getDelivery, id))
}

const listDeliveries = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR agent_id = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListDeliveriesParams struct {
	Status  pgtype.Text
	AgentID pgtype.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListDeliveries(ctx context.Context, arg ListDeliveriesParams) ([]Delivery, error) {
	rows, err := q.db.Query(ctx, listDeliveries, arg.Status, arg.AgentID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.OrderKind, &d.OrderID, &d.AgentID, &d.Status,
			&d.EstimatedAt, &d.DeliveredAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const assignDeliveryAgent = `
UPDATE deliveries
SET agent_id = $2, estimated_at = $3
WHERE id = $1
RETURNING ` + deliveryColumns

type AssignDeliveryAgentParams struct {
	ID          uuid.UUID
	AgentID     pgtype.UUID
	EstimatedAt pgtype.Timestamptz
}

func (q *Queries) AssignDeliveryAgent(ctx context.Context, arg AssignDeliveryAgentParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, assignDeliveryAgent, arg.ID, arg.AgentID, arg.EstimatedAt))
}

const updateDeliveryStatus = `
UPDATE deliveries
SET status = $2,
    delivered_at = COALESCE($3, delivered_at)
WHERE id = $1
RETURNING ` + deliveryColumns

type UpdateDeliveryStatusParams struct {
	ID          uuid.UUID
	Status      string
	DeliveredAt pgtype.Timestamptz
}

func (q *Queries) UpdateDeliveryStatus(ctx context.Context, arg UpdateDeliveryStatusParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, updateDeliveryStatus, arg.ID, arg.Status, arg.DeliveredAt))
}

func scanDelivery(row interface{ Scan(...any) error }) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.OrderKind, &d.OrderID, &d.AgentID, &d.Status,
		&d.EstimatedAt, &d.DeliveredAt, &d.CreatedAt)
	return d, err
}
