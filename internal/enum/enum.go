package enum

// ── State machines (CHECK constrained in DB) ──

const (
	PatientOrderStatusPendingApproval = "PENDING_APPROVAL"
	PatientOrderStatusPreparing       = "PREPARING"
	PatientOrderStatusDelivered       = "DELIVERED"
	PatientOrderStatusCancelled       = "CANCELLED"
)

const (
	EmployeeOrderStatusOrdered          = "ORDERED"
	EmployeeOrderStatusPreparing        = "PREPARING"
	EmployeeOrderStatusReadyForDelivery = "READY_FOR_DELIVERY"
	EmployeeOrderStatusDelivered        = "DELIVERED"
	EmployeeOrderStatusCancelled        = "CANCELLED"
)

const (
	DeliveryStatusPreparing      = "PREPARING"
	DeliveryStatusOutForDelivery = "OUT_FOR_DELIVERY"
	DeliveryStatusDelivered      = "DELIVERED"
	DeliveryStatusFailed         = "FAILED"
)

const (
	DeliveryKindPatient  = "PATIENT"
	DeliveryKindEmployee = "EMPLOYEE"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleNurse    = "NURSE"
	UserRoleEmployee = "EMPLOYEE"
	UserRoleKitchen  = "KITCHEN"
	UserRoleDelivery = "DELIVERY"
	UserRoleAdmin    = "ADMIN"
)

// ── Clinical labels (persisted verbatim, shown as-is in the UI) ──

const (
	MealTypeBreakfast = "Petit-déjeuner"
	MealTypeLunch     = "Déjeuner"
	MealTypeDinner    = "Dîner"
	MealTypeSnack     = "Collation"
)

const (
	DietNormal       = "Normal"
	DietDiabetic     = "Diabétique"
	DietHypertension = "Hypertension"
	DietNoSalt       = "Sans sel"
	DietLiquid       = "Liquide"
	DietNoResidue    = "Sans résidu"
	DietBlended      = "Mixé"
	DietEnriched     = "Enrichi"
	DietLowCalorie   = "Hypocalorique"
)

// MealTypes lists every meal type in serving order.
var MealTypes = []string{
	MealTypeBreakfast,
	MealTypeLunch,
	MealTypeDinner,
	MealTypeSnack,
}

// Diets lists every diet category.
var Diets = []string{
	DietNormal,
	DietDiabetic,
	DietHypertension,
	DietNoSalt,
	DietLiquid,
	DietNoResidue,
	DietBlended,
	DietEnriched,
	DietLowCalorie,
}

// PatientOrderStatuses lists every patient order status, forward path first.
var PatientOrderStatuses = []string{
	PatientOrderStatusPendingApproval,
	PatientOrderStatusPreparing,
	PatientOrderStatusDelivered,
	PatientOrderStatusCancelled,
}

// EmployeeOrderStatuses lists every employee order status, forward path first.
var EmployeeOrderStatuses = []string{
	EmployeeOrderStatusOrdered,
	EmployeeOrderStatusPreparing,
	EmployeeOrderStatusReadyForDelivery,
	EmployeeOrderStatusDelivered,
	EmployeeOrderStatusCancelled,
}

// IsMealType reports whether s is a known meal type.
func IsMealType(s string) bool {
	for _, m := range MealTypes {
		if s == m {
			return true
		}
	}
	return false
}

// IsDiet reports whether s is a known diet category.
func IsDiet(s string) bool {
	for _, d := range Diets {
		if s == d {
			return true
		}
	}
	return false
}
