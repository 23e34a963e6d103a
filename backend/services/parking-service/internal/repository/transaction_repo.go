package repository

import (
	"context"
	"database/sql"

	"parkcard/backend/services/parking-service/internal/models"
)

// CreateTransaction appends a ledger entry.
func (q *Queries) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	const query = `
		INSERT INTO transactions (transaction_id, card_ref, type, amount, payment_method, description, location, timestamp_in, timestamp_out, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := q.db.QueryRowContext(ctx, query,
		tx.TransactionID,
		tx.CardRef,
		tx.Type,
		tx.Amount,
		nullString(tx.PaymentMethod),
		tx.Description,
		nullString(tx.Location),
		nullTime(tx.TimestampIn),
		nullTime(tx.TimestampOut),
		tx.CreatedAt,
	).Scan(&tx.ID)
	return mapError(err)
}

// ListTransactions returns a card's entries, newest first.
func (q *Queries) ListTransactions(ctx context.Context, cardRef int64, txType models.TransactionType) ([]models.Transaction, error) {
	const query = `
		SELECT id, transaction_id, card_ref, type, amount, payment_method, description, location, timestamp_in, timestamp_out, created_at
		FROM transactions
		WHERE card_ref = $1 AND ($2::text = '' OR type = $2::text)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := q.db.QueryContext(ctx, query, cardRef, string(txType))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		var (
			tx       models.Transaction
			method   sql.NullString
			location sql.NullString
			in, out  sql.NullTime
		)
		if err := rows.Scan(
			&tx.ID,
			&tx.TransactionID,
			&tx.CardRef,
			&tx.Type,
			&tx.Amount,
			&method,
			&tx.Description,
			&location,
			&in,
			&out,
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		tx.PaymentMethod = method.String
		tx.Location = location.String
		tx.TimestampIn = timePtr(in)
		tx.TimestampOut = timePtr(out)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

// SumTransactions adds up every amount recorded for a card.
func (q *Queries) SumTransactions(ctx context.Context, cardRef int64) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE card_ref = $1`, cardRef).Scan(&sum)
	return sum, mapError(err)
}
