package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const employeeMenuColumns = `id, name, description, price, available, photo_url, created_at, updated_at`

const createEmployeeMenu = `
INSERT INTO employee_menus (name, description, price, available, photo_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + employeeMenuColumns

type CreateEmployeeMenuParams struct {
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Available   bool
	PhotoURL    pgtype.Text
}

func (q *Queries) CreateEmployeeMenu(ctx context.Context, arg CreateEmployeeMenuParams) (EmployeeMenu, error) {
	row := q.db.QueryRow(ctx, createEmployeeMenu,
		arg.Name, arg.Description, arg.Price, arg.Available, arg.PhotoURL)
	return scanEmployeeMenu(row)
}

const getEmployeeMenu = `
SELECT ` + employeeMenuColumns + `
FROM employee_menus
WHERE id = $1
`

func (q *Queries) GetEmployeeMenu(ctx context.Context, id uuid.UUID) (EmployeeMenu, error) {
	return scanEmployeeMenu(q.db.QueryRow(ctx, getEmployeeMenu, id))
}

const listEmployeeMenus = `
SELECT ` + employeeMenuColumns + `
FROM employee_menus
WHERE ($1::boolean OR available)
ORDER BY name
`

// ListEmployeeMenus returns the cafeteria catalog. Unavailable menus are only
// included when includeUnavailable is true.
func (q *Queries) ListEmployeeMenus(ctx context.Context, includeUnavailable bool) ([]EmployeeMenu, error) {
	rows, err := q.db.Query(ctx, listEmployeeMenus, includeUnavailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EmployeeMenu
	for rows.Next() {
		var m EmployeeMenu
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.Available,
			&m.PhotoURL, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const updateEmployeeMenu = `
UPDATE employee_menus
SET name = $2, description = $3, price = $4, photo_url = $5, updated_at = now()
WHERE id = $1
RETURNING ` + employeeMenuColumns

type UpdateEmployeeMenuParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	PhotoURL    pgtype.Text
}

func (q *Queries) UpdateEmployeeMenu(ctx context.Context, arg UpdateEmployeeMenuParams) (EmployeeMenu, error) {
	row := q.db.QueryRow(ctx, updateEmployeeMenu,
		arg.ID, arg.Name, arg.Description, arg.Price, arg.PhotoURL)
	return scanEmployeeMenu(row)
}

const setEmployeeMenuAvailability = `
UPDATE employee_menus
SET available = $2, updated_at = now()
WHERE id = $1
RETURNING ` + employeeMenuColumns

type SetEmployeeMenuAvailabilityParams struct {
	ID        uuid.UUID
	Available bool
}

func (q *Queries) SetEmployeeMenuAvailability(ctx context.Context, arg SetEmployeeMenuAvailabilityParams) (EmployeeMenu, error) {
	return scanEmployeeMenu(q.db.QueryRow(ctx, setEmployeeMenuAvailability, arg.ID, arg.Available))
}

func scanEmployeeMenu(row interface{ Scan(...any) error }) (EmployeeMenu, error) {
	var m EmployeeMenu
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.Available,
		&m.PhotoURL, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
