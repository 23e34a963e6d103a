package service

import (
	"context"
	"strings"
	"time"

	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/repository"
)

// Payment methods.
const (
	MethodOnline = "ONLINE"
	MethodCash   = "CASH"
)

// Ledger mutates card balances. Each call writes the new balance and exactly
// one transaction through the caller's unit of work, so both land or neither does.
type Ledger struct {
	newID func() string
	now   func() time.Time
}

// NewLedger returns a ledger using the given id generator and clock.
func NewLedger(newID func() string, now func() time.Time) *Ledger {
	return &Ledger{newID: newID, now: now}
}

// Entry is the outcome of a ledger mutation.
type Entry struct {
	NewBalance  int64
	Transaction models.Transaction
}

// DebitMeta tags a PARKING transaction with the stay it pays for.
type DebitMeta struct {
	Description  string
	Location     string
	TimestampIn  *time.Time
	TimestampOut *time.Time
}

// NormalizeMethod upper-cases a payment method, defaulting to ONLINE.
func NormalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return MethodOnline
	}
	return method
}

// Recharge credits amount to card.
func (l *Ledger) Recharge(ctx context.Context, q repository.Querier, card *models.Card, amount int64, method string) (*Entry, error) {
	method = NormalizeMethod(method)
	return l.credit(ctx, q, card, amount, method, "Recharge via "+method)
}

func (l *Ledger) credit(ctx context.Context, q repository.Querier, card *models.Card, amount int64, method, description string) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !card.IsActive {
		return nil, ErrCardInactive
	}
	balance := card.Balance + amount
	if balance < card.Balance {
		return nil, ErrInvalidAmount
	}

	tx := models.Transaction{
		TransactionID: l.newID(),
		CardRef:       card.ID,
		Type:          models.TransactionRecharge,
		Amount:        amount,
		PaymentMethod: method,
		Description:   description,
		CreatedAt:     l.now(),
	}
	return l.apply(ctx, q, card, balance, tx)
}

// Debit charges amount to card. A balance below amount leaves everything untouched.
func (l *Ledger) Debit(ctx context.Context, q repository.Querier, card *models.Card, amount int64, meta DebitMeta) (*Entry, error) {
	if !card.IsActive {
		return nil, ErrCardInactive
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if card.Balance < amount {
		return nil, newInsufficientBalance(amount, card.Balance)
	}

	tx := models.Transaction{
		TransactionID: l.newID(),
		CardRef:       card.ID,
		Type:          models.TransactionParking,
		Amount:        -amount,
		Description:   meta.Description,
		Location:      meta.Location,
		TimestampIn:   meta.TimestampIn,
		TimestampOut:  meta.TimestampOut,
		CreatedAt:     l.now(),
	}
	return l.apply(ctx, q, card, card.Balance-amount, tx)
}

func (l *Ledger) apply(ctx context.Context, q repository.Querier, card *models.Card, balance int64, tx models.Transaction) (*Entry, error) {
	if err := q.UpdateCardBalance(ctx, card.ID, balance); err != nil {
		return nil, err
	}
	if err := q.CreateTransaction(ctx, &tx); err != nil {
		return nil, err
	}
	card.Balance = balance
	return &Entry{NewBalance: balance, Transaction: tx}, nil
}
