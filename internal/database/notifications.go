package database

import (
	"context"

	"github.com/google/uuid"
)

const createNotification = `
INSERT INTO notifications (user_id, message)
VALUES ($1, $2)
RETURNING id, user_id, message, read, created_at
`

type CreateNotificationParams struct {
	UserID  uuid.UUID
	Message string
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRow(ctx, createNotification, arg.UserID, arg.Message)
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

const listNotificationsByUser = `
SELECT id, user_id, message, read, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT 100
`

func (q *Queries) ListNotificationsByUser(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotificationsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

const markNotificationRead = `
UPDATE notifications
SET read = true
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, message, read, created_at
`

type MarkNotificationReadParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// MarkNotificationRead flips the read flag; scoping by user keeps one
// operator from acknowledging another's notifications.
func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (Notification, error) {
	row := q.db.QueryRow(ctx, markNotificationRead, arg.ID, arg.UserID)
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

const countUnreadNotifications = `
SELECT count(*)
FROM notifications
WHERE user_id = $1 AND NOT read
`

func (q *Queries) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countUnreadNotifications, userID).Scan(&count)
	return count, err
}
