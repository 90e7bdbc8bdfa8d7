package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPatient = `
INSERT INTO patients (full_name, room, service, diet, allergies)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, full_name, room, service, diet, allergies, admitted_at, discharged_at
`

type CreatePatientParams struct {
	FullName  string
	Room      string
	Service   string
	Diet      string
	Allergies pgtype.Text
}

func (q *Queries) CreatePatient(ctx context.Context, arg CreatePatientParams) (Patient, error) {
	row := q.db.QueryRow(ctx, createPatient, arg.FullName, arg.Room, arg.Service, arg.Diet, arg.Allergies)
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Room, &p.Service, &p.Diet, &p.Allergies, &p.AdmittedAt, &p.DischargedAt)
	return p, err
}

const getPatient = `
SELECT id, full_name, room, service, diet, allergies, admitted_at, discharged_at
FROM patients
WHERE id = $1
`

func (q *Queries) GetPatient(ctx context.Context, id uuid.UUID) (Patient, error) {
	row := q.db.QueryRow(ctx, getPatient, id)
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Room, &p.Service, &p.Diet, &p.Allergies, &p.AdmittedAt, &p.DischargedAt)
	return p, err
}

const listPatients = `
SELECT id, full_name, room, service, diet, allergies, admitted_at, discharged_at
FROM patients
WHERE ($1::boolean OR discharged_at IS NULL)
ORDER BY admitted_at DESC
`

// ListPatients returns patients, most recently admitted first. Discharged
// patients are only included when includeDischarged is true.
func (q *Queries) ListPatients(ctx context.Context, includeDischarged bool) ([]Patient, error) {
	rows, err := q.db.Query(ctx, listPatients, includeDischarged)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FullName, &p.Room, &p.Service, &p.Diet, &p.Allergies, &p.AdmittedAt, &p.DischargedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updatePatient = `
UPDATE patients
SET full_name = $2, room = $3, service = $4, diet = $5, allergies = $6
WHERE id = $1
RETURNING id, full_name, room, service, diet, allergies, admitted_at, discharged_at
`

type UpdatePatientParams struct {
	ID        uuid.UUID
	FullName  string
	Room      string
	Service   string
	Diet      string
	Allergies pgtype.Text
}

func (q *Queries) UpdatePatient(ctx context.Context, arg UpdatePatientParams) (Patient, error) {
	row := q.db.QueryRow(ctx, updatePatient, arg.ID, arg.FullName, arg.Room, arg.Service, arg.Diet, arg.Allergies)
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Room, &p.Service, &p.Diet, &p.Allergies, &p.AdmittedAt, &p.DischargedAt)
	return p, err
}

const dischargePatient = `
UPDATE patients
SET discharged_at = now()
WHERE id = $1 AND discharged_at IS NULL
RETURNING id, full_name, room, service, diet, allergies, admitted_at, discharged_at
`

// DischargePatient stamps the exit timestamp. Rows are never deleted; a
// second discharge returns pgx.ErrNoRows.
func (q *Queries) DischargePatient(ctx context.Context, id uuid.UUID) (Patient, error) {
	row := q.db.QueryRow(ctx, dischargePatient, id)
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Room, &p.Service, &p.Diet, &p.Allergies, &p.AdmittedAt, &p.DischargedAt)
	return p, err
}
