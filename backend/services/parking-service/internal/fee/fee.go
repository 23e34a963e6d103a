// Package fee maps a vehicle type and a parked duration to a parking fee.
package fee

import (
	"time"

	"parkcard/backend/services/parking-service/internal/models"
)

const (
	DefaultMotorbikeFlat int64 = 4000
	DefaultCarHourly     int64 = 5000
)

// Policy holds the two tariff constants.
type Policy struct {
	MotorbikeFlat int64
	CarHourly     int64
}

// DefaultPolicy returns the standard tariff: 4000 per motorbike visit, 5000 per car hour.
func DefaultPolicy() Policy {
	return Policy{MotorbikeFlat: DefaultMotorbikeFlat, CarHourly: DefaultCarHourly}
}

// WithDefaults replaces non-positive constants with the defaults.
func (p Policy) WithDefaults() Policy {
	if p.MotorbikeFlat <= 0 {
		p.MotorbikeFlat = DefaultMotorbikeFlat
	}
	if p.CarHourly <= 0 {
		p.CarHourly = DefaultCarHourly
	}
	return p
}

// Fee returns the amount owed. Motorbikes pay a flat fee per visit; every other
// vehicle pays per hour with at least one billable hour.
func (p Policy) Fee(vehicle models.VehicleType, hours int64) int64 {
	if vehicle == models.VehicleMotorbike {
		return p.MotorbikeFlat
	}
	if hours < 1 {
		hours = 1
	}
	return hours * p.CarHourly
}

// BillableHours rounds the stay up to whole hours. Stays of zero or negative
// length (clock skew) count as one hour.
func BillableHours(in, out time.Time) int64 {
	d := out.Sub(in)
	if d <= 0 {
		return 1
	}
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}
