package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/auth"
	"parkcard/backend/services/parking-service/internal/events"
	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/password"
	"parkcard/backend/services/parking-service/internal/repository"
)

const autoUserEmailDomain = "@parking.system"

// CardService manages card registration, lookup and lifecycle.
type CardService struct {
	store  Store
	ledger *Ledger
	hasher password.Hasher
	now    func() time.Time
	notify *notifier
	logger *zap.Logger

	newUserID   func() string
	newPassword func() string
}

// NewCardService builds CardService.
func NewCardService(deps Deps) *CardService {
	deps = deps.withDefaults()
	return &CardService{
		store:       deps.Store,
		ledger:      NewLedger(deps.NewTransactionID, deps.Now),
		hasher:      deps.Hasher,
		now:         deps.Now,
		notify:      newNotifier(deps),
		logger:      deps.Logger,
		newUserID:   models.NewUserID,
		newPassword: models.NewDefaultPassword,
	}
}

// RegisterCardInput describes a new card. Email selects an existing owner;
// without it the owner is looked up by name or created.
type RegisterCardInput struct {
	CardID         string
	OwnerName      string
	Email          string
	LicensePlate   string
	VehicleType    string
	InitialBalance int64
}

// RegisterCardResult is returned by RegisterCard.
type RegisterCardResult struct {
	Card                 *models.Card `json:"card"`
	User                 *models.User `json:"user"`
	UserCreated          bool         `json:"user_created"`
	InitialTransactionID string       `json:"initial_transaction_id,omitempty"`
}

// CardDetails is the administrative view of a card.
type CardDetails struct {
	Card          *models.Card           `json:"card"`
	Owner         *models.User           `json:"owner,omitempty"`
	ActiveSession *models.ParkingSession `json:"active_session,omitempty"`
}

// ReconcileResult compares the stored balance with the ledger.
type ReconcileResult struct {
	CardID         string `json:"card_id"`
	Balance        int64  `json:"balance"`
	TransactionSum int64  `json:"transaction_sum"`
	Consistent     bool   `json:"consistent"`
}

func autoUserEmail(cardID string) string {
	local := strings.ToLower(strings.Join(strings.Fields(cardID), ""))
	return "user_" + local + autoUserEmailDomain
}

// RegisterCard creates a card and, when requested, its initial CASH recharge in
// one unit of work.
func (s *CardService) RegisterCard(ctx context.Context, in RegisterCardInput) (result *RegisterCardResult, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("register_card", started, err)
		s.notify.logFailure("register_card", err)
	}()

	cardID, err := normalizeCardID(in.CardID)
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(in.OwnerName)
	plate := strings.ToUpper(strings.TrimSpace(in.LicensePlate))
	if owner == "" || plate == "" {
		return nil, invalidInput("owner_name and license_plate are required")
	}
	vehicle, ok := models.ParseVehicleType(in.VehicleType)
	if !ok {
		return nil, invalidInput("vehicle_type must be car or motorbike")
	}
	if in.InitialBalance < 0 {
		return nil, ErrInvalidAmount
	}
	email := models.NormalizeEmail(in.Email)

	// hashed outside the unit of work; used only if a new owner is created
	var ownerHash string
	if email == "" {
		if ownerHash, err = s.hasher.Hash(s.newPassword()); err != nil {
			return nil, &SystemError{Op: "register_card", Err: err}
		}
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		if _, err := q.GetCardByCardID(ctx, cardID); err == nil {
			return ErrDuplicateIdentifier
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		user, created, err := s.resolveOwner(ctx, q, cardID, owner, email, ownerHash)
		if err != nil {
			return err
		}

		card := &models.Card{
			CardID:       cardID,
			UserRef:      user.ID,
			OwnerName:    owner,
			LicensePlate: plate,
			VehicleType:  vehicle,
			IsActive:     true,
		}
		if err := q.CreateCard(ctx, card); err != nil {
			return err
		}

		result = &RegisterCardResult{Card: card, User: user, UserCreated: created}
		if in.InitialBalance > 0 {
			entry, err := s.ledger.credit(ctx, q, card, in.InitialBalance, MethodCash, "Initial balance")
			if err != nil {
				return err
			}
			result.InitialTransactionID = entry.Transaction.TransactionID
		}
		return nil
	})
	if err = translate("register_card", err); err != nil {
		return nil, err
	}

	if in.InitialBalance > 0 {
		s.notify.amount("recharge", in.InitialBalance)
	}
	s.notify.publish(ctx, events.Event{
		Type:          events.TypeCardRegistered,
		CardID:        result.Card.CardID,
		Amount:        in.InitialBalance,
		Balance:       result.Card.Balance,
		TransactionID: result.InitialTransactionID,
		OccurredAt:    s.now(),
	})
	s.logger.Info("card registered",
		zap.String("card_id", result.Card.CardID),
		zap.String("user_id", result.User.UserID),
		zap.Bool("user_created", result.UserCreated),
	)
	return result, nil
}

func (s *CardService) resolveOwner(ctx context.Context, q repository.Querier, cardID, owner, email, passwordHash string) (*models.User, bool, error) {
	if email != "" {
		user, err := q.GetUserByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, notFound("user", email)
		}
		return user, false, err
	}

	user, err := q.GetUserByName(ctx, owner)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	user = &models.User{
		UserID:       s.newUserID(),
		Name:         owner,
		Email:        autoUserEmail(cardID),
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}
	if err := q.CreateUser(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// CardDetails returns a card in any state with its owner and active session.
func (s *CardService) CardDetails(ctx context.Context, cardID string) (*CardDetails, error) {
	cardID, err := normalizeCardID(cardID)
	if err != nil {
		return nil, err
	}
	q := s.store.Reader()
	card, err := readCard(ctx, q, cardID)
	if err != nil {
		return nil, translate("card_details", err)
	}

	details := &CardDetails{Card: card}
	owner, err := q.GetUserByRef(ctx, card.UserRef)
	switch {
	case err == nil:
		details.Owner = owner
	case !errors.Is(err, repository.ErrNotFound):
		return nil, translate("card_details", err)
	}
	session, err := q.GetActiveSession(ctx, card.ID)
	switch {
	case err == nil:
		details.ActiveSession = session
	case !errors.Is(err, repository.ErrNotFound):
		return nil, translate("card_details", err)
	}
	return details, nil
}

// CardInfo is the public view; inactive cards are reported as not found.
func (s *CardService) CardInfo(ctx context.Context, cardID string) (*models.Card, error) {
	cardID, err := normalizeCardID(cardID)
	if err != nil {
		return nil, err
	}
	card, err := readCard(ctx, s.store.Reader(), cardID)
	if err != nil {
		return nil, translate("card_info", err)
	}
	if !card.IsActive {
		return nil, notFound("card", cardID)
	}
	return card, nil
}

// PublicHistory is History restricted to active cards.
func (s *CardService) PublicHistory(ctx context.Context, cardID, typeFilter string) ([]models.Transaction, error) {
	card, err := s.CardInfo(ctx, cardID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.Reader().ListTransactions(ctx, card.ID, models.ParseTransactionType(typeFilter))
	if err != nil {
		return nil, translate("history", err)
	}
	return txs, nil
}

// DeactivateCard soft-deletes a card. Balance and history are kept.
func (s *CardService) DeactivateCard(ctx context.Context, cardID string) (*models.Card, error) {
	return s.setActive(ctx, "deactivate_card", cardID, false)
}

// ReactivateCard re-enables a deactivated card.
func (s *CardService) ReactivateCard(ctx context.Context, cardID string) (*models.Card, error) {
	return s.setActive(ctx, "reactivate_card", cardID, true)
}

func (s *CardService) setActive(ctx context.Context, op, cardID string, active bool) (card *models.Card, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe(op, started, err)
		s.notify.logFailure(op, err)
	}()

	if cardID, err = normalizeCardID(cardID); err != nil {
		return nil, err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		c, err := lockCard(ctx, q, cardID)
		if err != nil {
			return err
		}
		if active && c.IsActive {
			return invalidInput("card is already active")
		}
		if c.IsActive != active {
			if err := q.SetCardActive(ctx, c.ID, active); err != nil {
				return err
			}
			c.IsActive = active
		}
		card = c
		return nil
	})
	if err = translate(op, err); err != nil {
		return nil, err
	}

	evtType := events.TypeCardDeactivated
	if active {
		evtType = events.TypeCardReactivated
	}
	s.notify.publish(ctx, events.Event{Type: evtType, CardID: card.CardID, Balance: card.Balance, OccurredAt: s.now()})
	s.logger.Info("card state changed", zap.String("card_id", card.CardID), zap.Bool("active", active))
	return card, nil
}

// MyCard returns the first card owned by the authenticated user.
func (s *CardService) MyCard(ctx context.Context, identity auth.Identity) (*models.Card, error) {
	q := s.store.Reader()
	user, err := s.userFor(ctx, q, identity)
	if err != nil {
		return nil, err
	}
	card, err := q.GetCardByUserRef(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("card for user", user.UserID)
	}
	if err != nil {
		return nil, translate("my_card", err)
	}
	return card, nil
}

// MyHistory lists the transactions of the authenticated user's card.
func (s *CardService) MyHistory(ctx context.Context, identity auth.Identity, typeFilter string) ([]models.Transaction, error) {
	card, err := s.MyCard(ctx, identity)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.Reader().ListTransactions(ctx, card.ID, models.ParseTransactionType(typeFilter))
	if err != nil {
		return nil, translate("my_history", err)
	}
	return txs, nil
}

func (s *CardService) userFor(ctx context.Context, q repository.Querier, identity auth.Identity) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case identity.UserID != "":
		user, err = q.GetUserByUserID(ctx, identity.UserID)
	case identity.Email != "":
		user, err = q.GetUserByEmail(ctx, identity.Email)
	default:
		return nil, invalidInput("token carries no user")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user", identity.UserID+identity.Email)
	}
	if err != nil {
		return nil, translate("resolve_user", err)
	}
	return user, nil
}

// Reconcile checks that the stored balance equals the sum of the card's transactions.
func (s *CardService) Reconcile(ctx context.Context, cardID string) (*ReconcileResult, error) {
	cardID, err := normalizeCardID(cardID)
	if err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		card, err := lockCard(ctx, q, cardID)
		if err != nil {
			return err
		}
		sum, err := q.SumTransactions(ctx, card.ID)
		if err != nil {
			return err
		}
		result = &ReconcileResult{
			CardID:         card.CardID,
			Balance:        card.Balance,
			TransactionSum: sum,
			Consistent:     sum == card.Balance,
		}
		return nil
	})
	if err = translate("reconcile", err); err != nil {
		return nil, err
	}
	if !result.Consistent {
		s.logger.Error("ledger out of balance",
			zap.String("card_id", result.CardID),
			zap.Int64("balance", result.Balance),
			zap.Int64("transaction_sum", result.TransactionSum),
		)
	}
	return result, nil
}
