package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/events"
	"parkcard/backend/services/parking-service/internal/fee"
	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/repository"
)

// ParkingService runs recharges and the check-in/check-out state machine.
type ParkingService struct {
	store  Store
	ledger *Ledger
	fees   fee.Policy
	now    func() time.Time
	notify *notifier
	logger *zap.Logger
}

// NewParkingService builds ParkingService.
func NewParkingService(deps Deps) *ParkingService {
	deps = deps.withDefaults()
	return &ParkingService{
		store:  deps.Store,
		ledger: NewLedger(deps.NewTransactionID, deps.Now),
		fees:   deps.Fees,
		now:    deps.Now,
		notify: newNotifier(deps),
		logger: deps.Logger,
	}
}

// RechargeResult is returned by Recharge.
type RechargeResult struct {
	CardID        string `json:"card_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	NewBalance    int64  `json:"new_balance"`
	TransactionID string `json:"transaction_id"`
}

// CheckInResult is returned by CheckIn.
type CheckInResult struct {
	SessionID      int64              `json:"session_id"`
	CardID         string             `json:"card_id"`
	VehicleType    models.VehicleType `json:"vehicle_type"`
	Location       string             `json:"location"`
	TimestampIn    time.Time          `json:"timestamp_in"`
	CurrentBalance int64              `json:"current_balance"`
}

// CheckOutResult is returned by CheckOut.
type CheckOutResult struct {
	SessionID     int64              `json:"session_id"`
	CardID        string             `json:"card_id"`
	VehicleType   models.VehicleType `json:"vehicle_type"`
	LicensePlate  string             `json:"license_plate"`
	Location      string             `json:"location"`
	TimestampIn   time.Time          `json:"timestamp_in"`
	TimestampOut  time.Time          `json:"timestamp_out"`
	DurationHours int64              `json:"duration_hours"`
	Fee           int64              `json:"fee"`
	NewBalance    int64              `json:"new_balance"`
	TransactionID string             `json:"transaction_id"`
}

// StatusResult describes the parking state of a card. Session fields are only
// set while a session is active.
type StatusResult struct {
	CardID            string             `json:"card_id"`
	VehicleType       models.VehicleType `json:"vehicle_type"`
	HasActiveSession  bool               `json:"has_active_session"`
	SessionID         int64              `json:"session_id,omitempty"`
	Location          string             `json:"location,omitempty"`
	TimestampIn       *time.Time         `json:"timestamp_in,omitempty"`
	DurationHours     int64              `json:"duration_hours,omitempty"`
	EstimatedFee      int64              `json:"estimated_fee,omitempty"`
	CurrentBalance    int64              `json:"current_balance"`
	SufficientBalance *bool              `json:"sufficient_balance,omitempty"`
}

func normalizeCardID(cardID string) (string, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return "", invalidInput("card_id is required")
	}
	return cardID, nil
}

func lockCard(ctx context.Context, q repository.Querier, cardID string) (*models.Card, error) {
	card, err := q.LockCardByCardID(ctx, cardID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("card", cardID)
	}
	return card, err
}

func readCard(ctx context.Context, q repository.Querier, cardID string) (*models.Card, error) {
	card, err := q.GetCardByCardID(ctx, cardID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("card", cardID)
	}
	return card, err
}

// Recharge credits a card.
func (s *ParkingService) Recharge(ctx context.Context, cardID string, amount int64, method string) (result *RechargeResult, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("recharge", started, err)
		s.notify.logFailure("recharge", err)
	}()

	if cardID, err = normalizeCardID(cardID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		card, err := lockCard(ctx, q, cardID)
		if err != nil {
			return err
		}
		entry, err := s.ledger.Recharge(ctx, q, card, amount, method)
		if err != nil {
			return err
		}
		result = &RechargeResult{
			CardID:        card.CardID,
			Amount:        amount,
			PaymentMethod: entry.Transaction.PaymentMethod,
			NewBalance:    entry.NewBalance,
			TransactionID: entry.Transaction.TransactionID,
		}
		return nil
	})
	if err = translate("recharge", err); err != nil {
		return nil, err
	}

	s.notify.amount("recharge", amount)
	s.notify.publish(ctx, events.Event{
		Type:          events.TypeCardRecharged,
		CardID:        result.CardID,
		Amount:        result.Amount,
		Balance:       result.NewBalance,
		TransactionID: result.TransactionID,
		OccurredAt:    s.now(),
	})
	s.logger.Info("card recharged",
		zap.String("card_id", result.CardID),
		zap.Int64("amount", amount),
		zap.String("transaction_id", result.TransactionID),
	)
	return result, nil
}

// CheckIn opens a parking session for the card.
func (s *ParkingService) CheckIn(ctx context.Context, cardID, location string) (result *CheckInResult, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("checkin", started, err)
		s.notify.logFailure("checkin", err)
	}()

	if cardID, err = normalizeCardID(cardID); err != nil {
		return nil, err
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, invalidInput("location is required")
	}

	var session models.ParkingSession
	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		card, err := lockCard(ctx, q, cardID)
		if err != nil {
			return err
		}
		if !card.IsActive {
			return ErrCardInactive
		}

		active, err := q.GetActiveSession(ctx, card.ID)
		switch {
		case err == nil:
			return &SessionActiveError{CardID: card.CardID, Location: active.Location, TimestampIn: active.TimestampIn}
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		session = models.ParkingSession{
			CardRef:     card.ID,
			Location:    location,
			TimestampIn: s.now(),
			Status:      models.SessionActive,
		}
		if err := q.CreateSession(ctx, &session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return &SessionActiveError{CardID: card.CardID}
			}
			return err
		}

		result = &CheckInResult{
			SessionID:      session.ID,
			CardID:         card.CardID,
			VehicleType:    card.VehicleType,
			Location:       session.Location,
			TimestampIn:    session.TimestampIn,
			CurrentBalance: card.Balance,
		}
		return nil
	})
	if err = translate("checkin", err); err != nil {
		return nil, err
	}

	s.notify.cacheSession(ctx, result.CardID, session)
	s.notify.publish(ctx, events.Event{
		Type:       events.TypeCheckedIn,
		CardID:     result.CardID,
		SessionID:  result.SessionID,
		Location:   result.Location,
		Balance:    result.CurrentBalance,
		OccurredAt: result.TimestampIn,
	})
	s.logger.Info("parking check-in",
		zap.String("card_id", result.CardID),
		zap.Int64("session_id", result.SessionID),
		zap.String("location", result.Location),
	)
	return result, nil
}

// CheckOut closes the active session and charges the fee. When licensePlate is
// non-empty it must match the card's registered plate.
func (s *ParkingService) CheckOut(ctx context.Context, cardID, licensePlate string) (result *CheckOutResult, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("checkout", started, err)
		s.notify.logFailure("checkout", err)
	}()

	if cardID, err = normalizeCardID(cardID); err != nil {
		return nil, err
	}
	licensePlate = strings.TrimSpace(licensePlate)

	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		card, err := lockCard(ctx, q, cardID)
		if err != nil {
			return err
		}
		if !card.IsActive {
			return ErrCardInactive
		}
		if licensePlate != "" && !strings.EqualFold(licensePlate, card.LicensePlate) {
			return &PlateMismatchError{Registered: card.LicensePlate, Supplied: licensePlate}
		}

		session, err := q.GetActiveSession(ctx, card.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return err
		}

		out := s.now()
		hours := fee.BillableHours(session.TimestampIn, out)
		amount := s.fees.Fee(card.VehicleType, hours)
		if card.Balance < amount {
			return newInsufficientBalance(amount, card.Balance)
		}

		if err := q.CompleteSession(ctx, session.ID, out); err != nil {
			return err
		}
		in := session.TimestampIn
		entry, err := s.ledger.Debit(ctx, q, card, amount, DebitMeta{
			Description:  fmt.Sprintf("Parking at %s (%dh)", session.Location, hours),
			Location:     session.Location,
			TimestampIn:  &in,
			TimestampOut: &out,
		})
		if err != nil {
			return err
		}

		result = &CheckOutResult{
			SessionID:     session.ID,
			CardID:        card.CardID,
			VehicleType:   card.VehicleType,
			LicensePlate:  card.LicensePlate,
			Location:      session.Location,
			TimestampIn:   in,
			TimestampOut:  out,
			DurationHours: hours,
			Fee:           amount,
			NewBalance:    entry.NewBalance,
			TransactionID: entry.Transaction.TransactionID,
		}
		return nil
	})
	if err = translate("checkout", err); err != nil {
		return nil, err
	}

	s.notify.dropSession(ctx, result.CardID)
	s.notify.amount("fee", result.Fee)
	s.notify.publish(ctx, events.Event{
		Type:          events.TypeCheckedOut,
		CardID:        result.CardID,
		SessionID:     result.SessionID,
		Location:      result.Location,
		Amount:        -result.Fee,
		Balance:       result.NewBalance,
		TransactionID: result.TransactionID,
		OccurredAt:    result.TimestampOut,
	})
	s.logger.Info("parking check-out",
		zap.String("card_id", result.CardID),
		zap.Int64("session_id", result.SessionID),
		zap.Int64("hours", result.DurationHours),
		zap.Int64("fee", result.Fee),
	)
	return result, nil
}

// Status reports the current parking state without mutating anything.
func (s *ParkingService) Status(ctx context.Context, cardID string) (result *StatusResult, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("status", started, err)
		s.notify.logFailure("status", err)
	}()

	if cardID, err = normalizeCardID(cardID); err != nil {
		return nil, err
	}

	q := s.store.Reader()
	card, err := readCard(ctx, q, cardID)
	if err != nil {
		return nil, translate("status", err)
	}

	session, err := s.activeSession(ctx, q, card)
	if errors.Is(err, repository.ErrNotFound) {
		return &StatusResult{CardID: card.CardID, VehicleType: card.VehicleType, CurrentBalance: card.Balance}, nil
	}
	if err != nil {
		return nil, translate("status", err)
	}

	hours := fee.BillableHours(session.TimestampIn, s.now())
	estimate := s.fees.Fee(card.VehicleType, hours)
	sufficient := card.Balance >= estimate
	in := session.TimestampIn
	return &StatusResult{
		CardID:            card.CardID,
		VehicleType:       card.VehicleType,
		HasActiveSession:  true,
		SessionID:         session.ID,
		Location:          session.Location,
		TimestampIn:       &in,
		DurationHours:     hours,
		EstimatedFee:      estimate,
		CurrentBalance:    card.Balance,
		SufficientBalance: &sufficient,
	}, nil
}

// activeSession returns the card's ACTIVE session as the store sees it. A cached
// entry that disagrees with the store is dropped; reads never write the cache.
func (s *ParkingService) activeSession(ctx context.Context, q repository.Querier, card *models.Card) (*models.ParkingSession, error) {
	cached, hit := s.notify.cachedSession(ctx, card.CardID)
	session, err := q.GetActiveSession(ctx, card.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if hit && (session == nil || cached.ID != session.ID) {
		s.notify.dropSession(ctx, card.CardID)
	}
	return session, err
}

// History lists a card's transactions, most recent first. typeFilter accepts
// PARKING or RECHARGE; any other value returns everything.
func (s *ParkingService) History(ctx context.Context, cardID, typeFilter string) ([]models.Transaction, error) {
	cardID, err := normalizeCardID(cardID)
	if err != nil {
		return nil, err
	}
	q := s.store.Reader()
	card, err := readCard(ctx, q, cardID)
	if err != nil {
		return nil, translate("history", err)
	}
	txs, err := q.ListTransactions(ctx, card.ID, models.ParseTransactionType(typeFilter))
	if err != nil {
		return nil, translate("history", err)
	}
	return txs, nil
}
