package models

import "time"

// SessionStatus is the lifecycle state of a parking session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
)

// ParkingSession is one continuous stay of a card's vehicle.
type ParkingSession struct {
	ID           int64         `db:"id" json:"session_id"`
	CardRef      int64         `db:"card_ref" json:"-"`
	Location     string        `db:"location" json:"location"`
	TimestampIn  time.Time     `db:"timestamp_in" json:"timestamp_in"`
	TimestampOut *time.Time    `db:"timestamp_out" json:"timestamp_out,omitempty"`
	Status       SessionStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
