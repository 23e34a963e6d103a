package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"parkcard/backend/services/parking-service/internal/auth"
	"parkcard/backend/services/parking-service/internal/events"
	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/password"
	"parkcard/backend/services/parking-service/internal/repository"
	"parkcard/backend/services/parking-service/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingMetrics struct {
	mu      sync.Mutex
	results map[string]int
	amounts map[string]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{results: map[string]int{}, amounts: map[string]int64{}}
}

func (m *recordingMetrics) ObserveOperation(operation, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[operation+"/"+result]++
}

func (m *recordingMetrics) AddAmount(kind string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amounts[kind] += amount
}

type mapCache struct {
	mu       sync.Mutex
	sessions map[string]models.ParkingSession
	gets     int
}

func newMapCache() *mapCache {
	return &mapCache{sessions: map[string]models.ParkingSession{}}
}

func (c *mapCache) Save(_ context.Context, cardID string, s models.ParkingSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[cardID] = s
	return nil
}

func (c *mapCache) Get(_ context.Context, cardID string) (*models.ParkingSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	s, ok := c.sessions[cardID]
	if !ok {
		return nil, errors.New("miss")
	}
	return &s, nil
}

func (c *mapCache) Delete(_ context.Context, cardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, cardID)
	return nil
}

// failingStore runs units of work against a memory store but fails the
// selected write, so rollback can be observed.
type failingStore struct {
	*memory.Store
	failCreateTransaction bool
}

type failingQuerier struct {
	repository.Querier
	store *failingStore
}

func (q *failingQuerier) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if q.store.failCreateTransaction {
		return errors.New("disk full")
	}
	return q.Querier.CreateTransaction(ctx, tx)
}

func (s *failingStore) InTx(ctx context.Context, fn repository.TxFunc) error {
	return s.Store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		return fn(ctx, &failingQuerier{Querier: q, store: s})
	})
}

// interleavingStore runs afterActiveSession once, right after the next
// non-transactional GetActiveSession returns.
type interleavingStore struct {
	*memory.Store
	mu                 sync.Mutex
	afterActiveSession func()
}

type interleavingQuerier struct {
	repository.Querier
	store *interleavingStore
}

func (s *interleavingStore) Reader() repository.Querier {
	return &interleavingQuerier{Querier: s.Store.Reader(), store: s}
}

func (q *interleavingQuerier) GetActiveSession(ctx context.Context, cardRef int64) (*models.ParkingSession, error) {
	session, err := q.Querier.GetActiveSession(ctx, cardRef)
	q.store.mu.Lock()
	hook := q.store.afterActiveSession
	q.store.afterActiveSession = nil
	q.store.mu.Unlock()
	if hook != nil {
		hook()
	}
	return session, err
}

func withInterleavingStore(is *interleavingStore) envOption {
	return func(e *testEnv, d *Deps) {
		is.Store = e.mem
		d.Store = is
	}
}

type testEnv struct {
	store   Store
	mem     *memory.Store
	clock   *fakeClock
	events  *recordingPublisher
	metrics *recordingMetrics
	cache   *mapCache
	tokens  *auth.TokenService

	parking *ParkingService
	cards   *CardService
	users   *UserService
	auth    *AuthService
}

type envOption func(*testEnv, *Deps)

// withFailingStore routes units of work through a failingStore wrapping the
// environment's memory store.
func withFailingStore(fs *failingStore) envOption {
	return func(e *testEnv, d *Deps) {
		fs.Store = e.mem
		d.Store = fs
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		mem:     memory.New(0),
		clock:   newFakeClock(),
		events:  &recordingPublisher{},
		metrics: newRecordingMetrics(),
		cache:   newMapCache(),
		tokens:  auth.NewTokenService("test-secret", time.Hour),
	}

	var seq atomic.Int64
	deps := Deps{
		Store:   env.mem,
		Hasher:  password.NewBcryptHasher(bcrypt.MinCost),
		Tokens:  env.tokens,
		Cache:   env.cache,
		Events:  env.events,
		Metrics: env.metrics,
		Logger:  zap.NewNop(),
		Now:     env.clock.Now,
		NewTransactionID: func() string {
			return fmt.Sprintf("txn_%04d", seq.Add(1))
		},
	}
	for _, opt := range opts {
		opt(env, &deps)
	}
	env.store = deps.Store

	env.parking = NewParkingService(deps)
	env.cards = NewCardService(deps)
	env.users = NewUserService(deps)
	env.auth = NewAuthService(deps)
	return env
}

func (e *testEnv) registerCard(t *testing.T, cardID string, vehicle models.VehicleType, balance int64) *models.Card {
	t.Helper()
	res, err := e.cards.RegisterCard(context.Background(), RegisterCardInput{
		CardID:         cardID,
		OwnerName:      "Owner " + cardID,
		LicensePlate:   "59A-12345",
		VehicleType:    string(vehicle),
		InitialBalance: balance,
	})
	if err != nil {
		t.Fatalf("register card %s: %v", cardID, err)
	}
	return res.Card
}

func (e *testEnv) card(t *testing.T, cardID string) *models.Card {
	t.Helper()
	card, err := e.mem.Reader().GetCardByCardID(context.Background(), cardID)
	if err != nil {
		t.Fatalf("get card %s: %v", cardID, err)
	}
	return card
}

func (e *testEnv) transactions(t *testing.T, cardID string, typ models.TransactionType) []models.Transaction {
	t.Helper()
	card := e.card(t, cardID)
	txs, err := e.mem.Reader().ListTransactions(context.Background(), card.ID, typ)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return txs
}

func (e *testEnv) assertReconciled(t *testing.T, cardID string) {
	t.Helper()
	res, err := e.cards.Reconcile(context.Background(), cardID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Consistent {
		t.Fatalf("card %s out of balance: balance=%d sum=%d", cardID, res.Balance, res.TransactionSum)
	}
}
