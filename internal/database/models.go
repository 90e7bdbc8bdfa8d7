package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type Patient struct {
	ID           uuid.UUID
	FullName     string
	Room         string
	Service      string
	Diet         string
	Allergies    pgtype.Text
	AdmittedAt   time.Time
	DischargedAt pgtype.Timestamptz
}

type PatientOrder struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	MealType     string
	Menu         string
	Instructions pgtype.Text
	Status       string
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	PreparedAt   pgtype.Timestamptz
	DeliveredAt  pgtype.Timestamptz
}

type EmployeeMenu struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Available   bool
	PhotoURL    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EmployeeOrder struct {
	ID          uuid.UUID
	EmployeeID  uuid.UUID
	Status      string
	TotalPrice  pgtype.Numeric
	CreatedAt   time.Time
	PreparedAt  pgtype.Timestamptz
	DeliveredAt pgtype.Timestamptz
}

type EmployeeOrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	MenuID         uuid.UUID
	MenuName       string
	BasePrice      pgtype.Numeric
	Accompaniments int32
	LineTotal      pgtype.Numeric
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Message   string
	Read      bool
	CreatedAt time.Time
}

type Delivery struct {
	ID          uuid.UUID
	OrderKind   string
	OrderID     uuid.UUID
	AgentID     pgtype.UUID
	Status      string
	EstimatedAt pgtype.Timestamptz
	DeliveredAt pgtype.Timestamptz
	CreatedAt   time.Time
}
