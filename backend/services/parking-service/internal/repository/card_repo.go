package repository

import (
	"context"

	"parkcard/backend/services/parking-service/internal/models"
)

const cardColumns = `id, card_id, user_ref, owner_name, license_plate, vehicle_type, balance, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var c models.Card
	if err := row.Scan(
		&c.ID,
		&c.CardID,
		&c.UserRef,
		&c.OwnerName,
		&c.LicensePlate,
		&c.VehicleType,
		&c.Balance,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// GetCardByCardID fetches a card by its external id.
func (q *Queries) GetCardByCardID(ctx context.Context, cardID string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE card_id = $1`
	return scanCard(q.db.QueryRowContext(ctx, query, cardID))
}

// LockCardByCardID fetches a card with SELECT ... FOR UPDATE so that concurrent
// units of work on the same card serialize.
func (q *Queries) LockCardByCardID(ctx context.Context, cardID string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE card_id = $1 FOR UPDATE`
	return scanCard(q.db.QueryRowContext(ctx, query, cardID))
}

// GetCardByUserRef returns the oldest card owned by the user.
func (q *Queries) GetCardByUserRef(ctx context.Context, userRef int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_ref = $1 ORDER BY created_at ASC, id ASC LIMIT 1`
	return scanCard(q.db.QueryRowContext(ctx, query, userRef))
}

// CreateCard inserts a card and fills its generated fields.
func (q *Queries) CreateCard(ctx context.Context, card *models.Card) error {
	const query = `
		INSERT INTO cards (card_id, user_ref, owner_name, license_plate, vehicle_type, balance, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		card.CardID,
		card.UserRef,
		card.OwnerName,
		card.LicensePlate,
		card.VehicleType,
		card.Balance,
		card.IsActive,
	).Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	return mapError(err)
}

// UpdateCardBalance overwrites the balance of a card.
func (q *Queries) UpdateCardBalance(ctx context.Context, cardRef int64, balance int64) error {
	const query = `UPDATE cards SET balance = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.db.ExecContext(ctx, query, cardRef, balance)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

// SetCardActive toggles the active flag.
func (q *Queries) SetCardActive(ctx context.Context, cardRef int64, active bool) error {
	const query = `UPDATE cards SET is_active = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.db.ExecContext(ctx, query, cardRef, active)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

// CountCardsByUser counts cards linked to a user.
func (q *Queries) CountCardsByUser(ctx context.Context, userRef int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE user_ref = $1`, userRef).Scan(&n)
	return n, mapError(err)
}
