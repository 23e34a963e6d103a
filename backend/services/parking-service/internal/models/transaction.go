package models

import (
	"strings"
	"time"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionRecharge TransactionType = "RECHARGE"
	TransactionParking  TransactionType = "PARKING"
)

// ParseTransactionType accepts RECHARGE/PARKING in any case; anything else yields "".
func ParseTransactionType(raw string) TransactionType {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TransactionRecharge, TransactionParking:
		return t
	default:
		return ""
	}
}

// Transaction is an immutable ledger entry. Amount is positive for recharges
// and negative for parking fees.
type Transaction struct {
	ID            int64           `db:"id" json:"-"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	CardRef       int64           `db:"card_ref" json:"-"`
	Type          TransactionType `db:"type" json:"type"`
	Amount        int64           `db:"amount" json:"amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method,omitempty"`
	Description   string          `db:"description" json:"description"`
	Location      string          `db:"location" json:"location,omitempty"`
	TimestampIn   *time.Time      `db:"timestamp_in" json:"timestamp_in,omitempty"`
	TimestampOut  *time.Time      `db:"timestamp_out" json:"timestamp_out,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
