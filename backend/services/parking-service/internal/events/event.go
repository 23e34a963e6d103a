// Package events distributes committed card and parking events to live
// subscribers over WebSocket and, optionally, to a NATS subject.
package events

import (
	"context"
	"errors"
	"time"
)

// Event types.
const (
	TypeCardRegistered  = "card.registered"
	TypeCardRecharged   = "card.recharged"
	TypeCardDeactivated = "card.deactivated"
	TypeCardReactivated = "card.reactivated"
	TypeCheckedIn       = "parking.checked_in"
	TypeCheckedOut      = "parking.checked_out"
)

// Event is emitted after a unit of work commits.
type Event struct {
	Type          string    `json:"type"`
	CardID        string    `json:"card_id"`
	Amount        int64     `json:"amount,omitempty"`
	Balance       int64     `json:"balance"`
	Location      string    `json:"location,omitempty"`
	SessionID     int64     `json:"session_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Sink accepts events.
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
