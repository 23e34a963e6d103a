package models

import "time"

// VehicleType selects the fee policy applied to a card.
type VehicleType string

const (
	VehicleCar       VehicleType = "car"
	VehicleMotorbike VehicleType = "motorbike"
)

// ParseVehicleType normalises input; empty means car.
func ParseVehicleType(raw string) (VehicleType, bool) {
	switch VehicleType(normalize(raw)) {
	case "", VehicleCar:
		return VehicleCar, true
	case VehicleMotorbike:
		return VehicleMotorbike, true
	default:
		return "", false
	}
}

// Card is a prepaid parking card bound to one user and one vehicle.
type Card struct {
	ID           int64       `db:"id" json:"-"`
	CardID       string      `db:"card_id" json:"card_id"`
	UserRef      int64       `db:"user_ref" json:"-"`
	OwnerName    string      `db:"owner_name" json:"owner_name"`
	LicensePlate string      `db:"license_plate" json:"license_plate"`
	VehicleType  VehicleType `db:"vehicle_type" json:"vehicle_type"`
	Balance      int64       `db:"balance" json:"balance"`
	IsActive     bool        `db:"is_active" json:"is_active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}
