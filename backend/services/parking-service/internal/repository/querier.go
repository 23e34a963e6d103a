package repository

import (
	"context"
	"errors"
	"time"

	"parkcard/backend/services/parking-service/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("repository: duplicate key")
)

// Querier is the set of reads and writes the business layer runs, either inside
// a unit of work or directly against the pool for read-only paths.
type Querier interface {
	GetCardByCardID(ctx context.Context, cardID string) (*models.Card, error)
	// LockCardByCardID reads the card and holds its row lock until the unit of work ends.
	LockCardByCardID(ctx context.Context, cardID string) (*models.Card, error)
	GetCardByUserRef(ctx context.Context, userRef int64) (*models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCardBalance(ctx context.Context, cardRef int64, balance int64) error
	SetCardActive(ctx context.Context, cardRef int64, active bool) error
	CountCardsByUser(ctx context.Context, userRef int64) (int, error)

	GetActiveSession(ctx context.Context, cardRef int64) (*models.ParkingSession, error)
	CreateSession(ctx context.Context, session *models.ParkingSession) error
	CompleteSession(ctx context.Context, sessionID int64, timestampOut time.Time) error

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	// ListTransactions returns the card's entries newest first; an empty type means all.
	ListTransactions(ctx context.Context, cardRef int64, txType models.TransactionType) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, cardRef int64) (int64, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByRef(ctx context.Context, id int64) (*models.User, error)
	GetUserByUserID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByName(ctx context.Context, name string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// TxFunc is a unit of work body. Returning an error rolls everything back.
type TxFunc func(ctx context.Context, q Querier) error
