package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/repository"
)

func seedCard(t *testing.T, s *Store, cardID string, balance int64) *models.Card {
	t.Helper()
	card := &models.Card{CardID: cardID, OwnerName: "Ana", LicensePlate: "59A-12345", VehicleType: models.VehicleCar, Balance: balance, IsActive: true}
	err := s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		user := &models.User{UserID: "U_" + cardID, Name: "Ana", Email: cardID + "@example.com", Role: models.RoleUser}
		if err := q.CreateUser(ctx, user); err != nil {
			return err
		}
		card.UserRef = user.ID
		return q.CreateCard(ctx, card)
	})
	if err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return card
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 1000)

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		if err := q.UpdateCardBalance(ctx, card.ID, 0); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, &models.Transaction{TransactionID: "txn_1", CardRef: card.ID, Type: models.TransactionParking, Amount: -1000}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := s.Reader().GetCardByCardID(context.Background(), "CARD1")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if got.Balance != 1000 {
		t.Fatalf("expected balance untouched, got %d", got.Balance)
	}
	txs, _ := s.Reader().ListTransactions(context.Background(), card.ID, "")
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func assertUntouched(t *testing.T, s *Store, card *models.Card, balance int64) {
	t.Helper()
	got, err := s.Reader().GetCardByCardID(context.Background(), card.CardID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if got.Balance != balance {
		t.Fatalf("expected balance %d, got %d", balance, got.Balance)
	}
	txs, _ := s.Reader().ListTransactions(context.Background(), card.ID, "")
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func drain(ctx context.Context, q repository.Querier, card *models.Card) error {
	if err := q.UpdateCardBalance(ctx, card.ID, 0); err != nil {
		return err
	}
	return q.CreateTransaction(ctx, &models.Transaction{TransactionID: "txn_1", CardRef: card.ID, Type: models.TransactionParking, Amount: -card.Balance})
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 1000)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
			if err := drain(ctx, q, card); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	assertUntouched(t, s, card, 1000)

	// the lock is released after the panic
	err := s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		return q.UpdateCardBalance(ctx, card.ID, 900)
	})
	if err != nil {
		t.Fatalf("unit of work after panic: %v", err)
	}
}

func TestInTxRollsBackOnDeadline(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		if err := drain(ctx, q, card); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	assertUntouched(t, s, card, 1000)
}

func TestInTxAppliesStoreTimeout(t *testing.T) {
	s := New(10 * time.Millisecond)
	card := seedCard(t, s, "CARD1", 1000)

	err := s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("expected unit of work context to carry a deadline")
		}
		if err := drain(ctx, q, card); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	assertUntouched(t, s, card, 1000)
}

func TestInTxExpiresWhileWaitingForLock(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 1000)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	waited := make(chan error, 1)
	ran := false
	go func() {
		waited <- s.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
			ran = true
			return drain(ctx, q, card)
		})
	}()

	<-ctx.Done()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}
	if err := <-waited; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if ran {
		t.Fatalf("expired unit of work must not run")
	}
	assertUntouched(t, s, card, 1000)
}

func TestUniqueConstraints(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 0)
	ctx := context.Background()
	q := s.Reader()

	err := q.CreateCard(ctx, &models.Card{CardID: "CARD1", UserRef: card.UserRef})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate card, got %v", err)
	}
	err = q.CreateUser(ctx, &models.User{UserID: "U_other", Email: " CARD1@Example.com "})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	first := &models.ParkingSession{CardRef: card.ID, Location: "A", TimestampIn: time.Now(), Status: models.SessionActive}
	if err := q.CreateSession(ctx, first); err != nil {
		t.Fatalf("first session: %v", err)
	}
	second := &models.ParkingSession{CardRef: card.ID, Location: "B", TimestampIn: time.Now(), Status: models.SessionActive}
	if err := q.CreateSession(ctx, second); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate active session, got %v", err)
	}
	if err := q.CompleteSession(ctx, first.ID, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := q.CompleteSession(ctx, first.ID, time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found on second completion, got %v", err)
	}
	if err := q.CreateSession(ctx, second); err != nil {
		t.Fatalf("session after completion: %v", err)
	}
}

func TestNegativeBalanceRejected(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 100)
	if err := s.Reader().UpdateCardBalance(context.Background(), card.ID, -1); !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected negative balance error, got %v", err)
	}
}

func TestListTransactionsNewestFirstWithFilter(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 0)
	ctx := context.Background()
	q := s.Reader()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []models.Transaction{
		{TransactionID: "txn_a", Type: models.TransactionRecharge, Amount: 100, CreatedAt: base},
		{TransactionID: "txn_b", Type: models.TransactionParking, Amount: -50, CreatedAt: base.Add(time.Minute)},
		{TransactionID: "txn_c", Type: models.TransactionRecharge, Amount: 10, CreatedAt: base.Add(time.Minute)},
	}
	for i := range entries {
		entries[i].CardRef = card.ID
		if err := q.CreateTransaction(ctx, &entries[i]); err != nil {
			t.Fatalf("create tx: %v", err)
		}
	}

	all, _ := q.ListTransactions(ctx, card.ID, "")
	want := []string{"txn_c", "txn_b", "txn_a"}
	for i, id := range want {
		if all[i].TransactionID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, all[i].TransactionID)
		}
	}
	recharges, _ := q.ListTransactions(ctx, card.ID, models.TransactionRecharge)
	if len(recharges) != 2 {
		t.Fatalf("expected 2 recharges, got %d", len(recharges))
	}
	sum, _ := q.SumTransactions(ctx, card.ID)
	if sum != 60 {
		t.Fatalf("expected sum 60, got %d", sum)
	}
}

func TestInTxSerializesConcurrentWork(t *testing.T) {
	s := New(0)
	card := seedCard(t, s, "CARD1", 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
				c, err := q.LockCardByCardID(ctx, "CARD1")
				if err != nil {
					return err
				}
				return q.UpdateCardBalance(ctx, c.ID, c.Balance+10)
			})
		}()
	}
	wg.Wait()

	got, _ := s.Reader().GetCardByCardID(context.Background(), card.CardID)
	if got.Balance != 500 {
		t.Fatalf("expected 500, got %d", got.Balance)
	}
}
