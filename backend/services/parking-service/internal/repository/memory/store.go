// Package memory is an in-process implementation of the repository contract.
// It keeps the same constraints as the Postgres schema and gives each unit of
// work all-or-nothing semantics by running it against a copy of the tables.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/repository"
)

const defaultTxTimeout = 5 * time.Second

// ErrNegativeBalance mirrors the CHECK (balance >= 0) constraint of the SQL schema.
var ErrNegativeBalance = errors.New("memory: balance must not be negative")

type tables struct {
	cards        map[int64]models.Card
	users        map[int64]models.User
	sessions     map[int64]models.ParkingSession
	transactions map[int64]models.Transaction

	nextCard, nextUser, nextSession, nextTx int64
}

func newTables() *tables {
	return &tables{
		cards:        make(map[int64]models.Card),
		users:        make(map[int64]models.User),
		sessions:     make(map[int64]models.ParkingSession),
		transactions: make(map[int64]models.Transaction),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		cards:        maps.Clone(t.cards),
		users:        maps.Clone(t.users),
		sessions:     maps.Clone(t.sessions),
		transactions: maps.Clone(t.transactions),
		nextCard:     t.nextCard,
		nextUser:     t.nextUser,
		nextSession:  t.nextSession,
		nextTx:       t.nextTx,
	}
}

// Store is safe for concurrent use. Units of work are serialized.
type Store struct {
	mu        sync.RWMutex
	data      *tables
	now       func() time.Time
	txTimeout time.Duration
}

// New returns an empty store. Every unit of work is bounded by txTimeout.
func New(txTimeout time.Duration) *Store {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &Store{data: newTables(), now: time.Now, txTimeout: txTimeout}
}

// InTx runs fn against a snapshot and publishes the snapshot only if fn returns
// nil before the deadline. A panic in fn leaves the tables untouched.
// fn must not call Reader on the same store.
func (s *Store) InTx(ctx context.Context, fn repository.TxFunc) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: waiting for unit of work: %w", err)
	}

	work := s.data.clone()
	if err := fn(ctx, &queries{store: s, fixed: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: unit of work expired before commit: %w", err)
	}
	s.data = work
	return nil
}

// Reader returns a Querier that reads and writes the live tables, one call at a time.
func (s *Store) Reader() repository.Querier {
	return &queries{store: s}
}

type queries struct {
	store *Store
	fixed *tables
}

// read returns the tables to use and a release func.
func (q *queries) read() (*tables, func()) {
	if q.fixed != nil {
		return q.fixed, func() {}
	}
	q.store.mu.RLock()
	return q.store.data, q.store.mu.RUnlock
}

func (q *queries) write() (*tables, func()) {
	if q.fixed != nil {
		return q.fixed, func() {}
	}
	q.store.mu.Lock()
	return q.store.data, q.store.mu.Unlock
}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicate, constraint)
}

func (q *queries) GetCardByCardID(_ context.Context, cardID string) (*models.Card, error) {
	t, done := q.read()
	defer done()

	for _, c := range t.cards {
		if c.CardID == cardID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *queries) LockCardByCardID(ctx context.Context, cardID string) (*models.Card, error) {
	return q.GetCardByCardID(ctx, cardID)
}

func (q *queries) GetCardByUserRef(_ context.Context, userRef int64) (*models.Card, error) {
	t, done := q.read()
	defer done()

	var found *models.Card
	for _, c := range t.cards {
		if c.UserRef != userRef {
			continue
		}
		if found == nil || c.ID < found.ID {
			card := c
			found = &card
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (q *queries) CreateCard(_ context.Context, card *models.Card) error {
	t, done := q.write()
	defer done()

	for _, c := range t.cards {
		if c.CardID == card.CardID {
			return duplicate("cards_card_id_key")
		}
	}
	if _, ok := t.users[card.UserRef]; !ok {
		return fmt.Errorf("memory: card references unknown user %d", card.UserRef)
	}
	if card.Balance < 0 {
		return ErrNegativeBalance
	}

	t.nextCard++
	now := q.store.now()
	card.ID = t.nextCard
	card.CreatedAt = now
	card.UpdatedAt = now
	t.cards[card.ID] = *card
	return nil
}

func (q *queries) UpdateCardBalance(_ context.Context, cardRef int64, balance int64) error {
	t, done := q.write()
	defer done()

	c, ok := t.cards[cardRef]
	if !ok {
		return repository.ErrNotFound
	}
	if balance < 0 {
		return ErrNegativeBalance
	}
	c.Balance = balance
	c.UpdatedAt = q.store.now()
	t.cards[cardRef] = c
	return nil
}

func (q *queries) SetCardActive(_ context.Context, cardRef int64, active bool) error {
	t, done := q.write()
	defer done()

	c, ok := t.cards[cardRef]
	if !ok {
		return repository.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = q.store.now()
	t.cards[cardRef] = c
	return nil
}

func (q *queries) CountCardsByUser(_ context.Context, userRef int64) (int, error) {
	t, done := q.read()
	defer done()

	n := 0
	for _, c := range t.cards {
		if c.UserRef == userRef {
			n++
		}
	}
	return n, nil
}

func (q *queries) GetActiveSession(_ context.Context, cardRef int64) (*models.ParkingSession, error) {
	t, done := q.read()
	defer done()

	for _, s := range t.sessions {
		if s.CardRef == cardRef && s.Status == models.SessionActive {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *queries) CreateSession(_ context.Context, session *models.ParkingSession) error {
	t, done := q.write()
	defer done()

	if session.Status == models.SessionActive {
		for _, s := range t.sessions {
			if s.CardRef == session.CardRef && s.Status == models.SessionActive {
				return duplicate("parking_sessions_one_active_per_card")
			}
		}
	}

	t.nextSession++
	now := q.store.now()
	session.ID = t.nextSession
	session.CreatedAt = now
	session.UpdatedAt = now
	t.sessions[session.ID] = *session
	return nil
}

func (q *queries) CompleteSession(_ context.Context, sessionID int64, timestampOut time.Time) error {
	t, done := q.write()
	defer done()

	s, ok := t.sessions[sessionID]
	if !ok || s.Status != models.SessionActive {
		return repository.ErrNotFound
	}
	out := timestampOut
	s.TimestampOut = &out
	s.Status = models.SessionCompleted
	s.UpdatedAt = q.store.now()
	t.sessions[sessionID] = s
	return nil
}

func (q *queries) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	t, done := q.write()
	defer done()

	for _, existing := range t.transactions {
		if existing.TransactionID == tx.TransactionID {
			return duplicate("transactions_transaction_id_key")
		}
	}
	if _, ok := t.cards[tx.CardRef]; !ok {
		return fmt.Errorf("memory: transaction references unknown card %d", tx.CardRef)
	}

	t.nextTx++
	tx.ID = t.nextTx
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = q.store.now()
	}
	t.transactions[tx.ID] = *tx
	return nil
}

func (q *queries) ListTransactions(_ context.Context, cardRef int64, txType models.TransactionType) ([]models.Transaction, error) {
	t, done := q.read()
	defer done()

	out := make([]models.Transaction, 0)
	for _, tx := range t.transactions {
		if tx.CardRef != cardRef {
			continue
		}
		if txType != "" && tx.Type != txType {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (q *queries) SumTransactions(_ context.Context, cardRef int64) (int64, error) {
	t, done := q.read()
	defer done()

	var sum int64
	for _, tx := range t.transactions {
		if tx.CardRef == cardRef {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (q *queries) CreateUser(_ context.Context, user *models.User) error {
	t, done := q.write()
	defer done()

	user.Email = models.NormalizeEmail(user.Email)
	for _, u := range t.users {
		if u.UserID == user.UserID {
			return duplicate("users_user_id_key")
		}
		if u.Email == user.Email {
			return duplicate("users_email_key")
		}
	}

	t.nextUser++
	user.ID = t.nextUser
	user.CreatedAt = q.store.now()
	t.users[user.ID] = *user
	return nil
}

func (q *queries) GetUserByRef(_ context.Context, id int64) (*models.User, error) {
	t, done := q.read()
	defer done()

	if u, ok := t.users[id]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (q *queries) findUser(match func(models.User) bool) (*models.User, error) {
	t, done := q.read()
	defer done()

	var found *models.User
	for _, u := range t.users {
		if !match(u) {
			continue
		}
		if found == nil || u.ID < found.ID {
			user := u
			found = &user
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (q *queries) GetUserByUserID(_ context.Context, userID string) (*models.User, error) {
	return q.findUser(func(u models.User) bool { return u.UserID == userID })
}

func (q *queries) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return q.findUser(func(u models.User) bool { return u.Email == email })
}

func (q *queries) GetUserByName(_ context.Context, name string) (*models.User, error) {
	return q.findUser(func(u models.User) bool { return u.Name == name })
}

func (q *queries) ListUsers(_ context.Context) ([]models.User, error) {
	t, done := q.read()
	defer done()

	out := make([]models.User, 0, len(t.users))
	for _, u := range t.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *queries) DeleteUser(_ context.Context, id int64) error {
	t, done := q.write()
	defer done()

	if _, ok := t.users[id]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range t.cards {
		if c.UserRef == id {
			return fmt.Errorf("memory: user %d still owns cards", id)
		}
	}
	delete(t.users, id)
	return nil
}
