package repository

import (
	"context"
	"database/sql"
	"time"

	"parkcard/backend/services/parking-service/internal/models"
)

// GetActiveSession returns the ACTIVE session of a card.
func (q *Queries) GetActiveSession(ctx context.Context, cardRef int64) (*models.ParkingSession, error) {
	const query = `
		SELECT id, card_ref, location, timestamp_in, timestamp_out, status, created_at, updated_at
		FROM parking_sessions
		WHERE card_ref = $1 AND status = 'ACTIVE'
		LIMIT 1
	`
	var (
		s   models.ParkingSession
		out sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, query, cardRef).Scan(
		&s.ID,
		&s.CardRef,
		&s.Location,
		&s.TimestampIn,
		&out,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	s.TimestampOut = timePtr(out)
	return &s, nil
}

// CreateSession inserts a session. The partial unique index on ACTIVE sessions
// surfaces a second concurrent check-in as ErrDuplicate.
func (q *Queries) CreateSession(ctx context.Context, session *models.ParkingSession) error {
	const query = `
		INSERT INTO parking_sessions (card_ref, location, timestamp_in, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		session.CardRef,
		session.Location,
		session.TimestampIn,
		session.Status,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	return mapError(err)
}

// CompleteSession moves an ACTIVE session to COMPLETED.
func (q *Queries) CompleteSession(ctx context.Context, sessionID int64, timestampOut time.Time) error {
	const query = `
		UPDATE parking_sessions
		SET timestamp_out = $2,
		    status = 'COMPLETED',
		    updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
	`
	result, err := q.db.ExecContext(ctx, query, sessionID, timestampOut)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}
