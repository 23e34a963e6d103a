package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/auth"
	"parkcard/backend/services/parking-service/internal/events"
	"parkcard/backend/services/parking-service/internal/fee"
	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/password"
	"parkcard/backend/services/parking-service/internal/repository"
)

// Store is the transactional persistence contract. Every business operation
// runs inside exactly one InTx call.
type Store interface {
	InTx(ctx context.Context, fn repository.TxFunc) error
	Reader() repository.Querier
}

// ActiveSessionCache keeps the ACTIVE session of a card close at hand.
// Implementations return an error on a miss.
type ActiveSessionCache interface {
	Save(ctx context.Context, cardID string, session models.ParkingSession) error
	Get(ctx context.Context, cardID string) (*models.ParkingSession, error)
	Delete(ctx context.Context, cardID string) error
}

// Publisher fans committed domain events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Recorder receives operation metrics.
type Recorder interface {
	ObserveOperation(operation, result string, took time.Duration)
	AddAmount(kind string, amount int64)
}

// Deps carries the collaborators shared by the services. Cache, Events and
// Metrics are optional.
type Deps struct {
	Store   Store
	Fees    fee.Policy
	Hasher  password.Hasher
	Tokens  *auth.TokenService
	Cache   ActiveSessionCache
	Events  Publisher
	Metrics Recorder
	Logger  *zap.Logger

	Now              func() time.Time
	NewTransactionID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewTransactionID == nil {
		d.NewTransactionID = models.NewTransactionID
	}
	d.Fees = d.Fees.WithDefaults()
	return d
}

// notifier runs the best-effort side effects that follow a commit.
type notifier struct {
	cache   ActiveSessionCache
	events  Publisher
	metrics Recorder
	logger  *zap.Logger
}

func newNotifier(d Deps) *notifier {
	return &notifier{cache: d.Cache, events: d.Events, metrics: d.Metrics, logger: d.Logger}
}

func (n *notifier) publish(ctx context.Context, evt events.Event) {
	if n.events == nil {
		return
	}
	if err := n.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		n.logger.Warn("failed to publish event", zap.String("type", evt.Type), zap.String("card_id", evt.CardID), zap.Error(err))
	}
}

func (n *notifier) cacheSession(ctx context.Context, cardID string, session models.ParkingSession) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Save(context.WithoutCancel(ctx), cardID, session); err != nil {
		n.logger.Warn("failed to cache active session", zap.String("card_id", cardID), zap.Error(err))
	}
}

func (n *notifier) dropSession(ctx context.Context, cardID string) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Delete(context.WithoutCancel(ctx), cardID); err != nil {
		n.logger.Warn("failed to delete active session cache", zap.String("card_id", cardID), zap.Error(err))
	}
}

func (n *notifier) cachedSession(ctx context.Context, cardID string) (*models.ParkingSession, bool) {
	if n.cache == nil {
		return nil, false
	}
	session, err := n.cache.Get(ctx, cardID)
	if err != nil || session == nil {
		return nil, false
	}
	return session, true
}

func (n *notifier) observe(operation string, started time.Time, err error) {
	if n.metrics == nil {
		return
	}
	n.metrics.ObserveOperation(operation, ErrorKind(err), time.Since(started))
}

func (n *notifier) amount(kind string, amount int64) {
	if n.metrics == nil {
		return
	}
	n.metrics.AddAmount(kind, amount)
}

// logFailure records unexpected failures; domain rejections are not logged.
func (n *notifier) logFailure(operation string, err error) {
	if errors.Is(err, ErrSystemFailure) {
		n.logger.Error("operation failed", zap.String("operation", operation), zap.Error(err))
	}
}
