package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	libredis "parkcard/backend/libs/redis"
	"parkcard/backend/services/parking-service/internal/auth"
	"parkcard/backend/services/parking-service/internal/config"
	"parkcard/backend/services/parking-service/internal/db"
	"parkcard/backend/services/parking-service/internal/events"
	"parkcard/backend/services/parking-service/internal/fee"
	httpserver "parkcard/backend/services/parking-service/internal/http"
	"parkcard/backend/services/parking-service/internal/http/handlers"
	"parkcard/backend/services/parking-service/internal/http/middleware"
	"parkcard/backend/services/parking-service/internal/metrics"
	"parkcard/backend/services/parking-service/internal/password"
	redisstore "parkcard/backend/services/parking-service/internal/redis"
	"parkcard/backend/services/parking-service/internal/repository"
	"parkcard/backend/services/parking-service/internal/repository/memory"
	"parkcard/backend/services/parking-service/internal/service"
)

// App wires parking service dependencies.
type App struct {
	server  *httpserver.Server
	handler http.Handler
	users   *service.UserService
	cfg     *config.Config
	logger  *zap.Logger
	closers []func()
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, pinger, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	var cache service.ActiveSessionCache
	if cfg.Redis.Addr != "" {
		client, err := libredis.NewRedisClient(libredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			logger.Warn("redis unavailable, running without active session cache", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
			cache = redisstore.NewStore(client, cfg.Redis.TTL)
		}
	}

	hub := events.NewHub(cfg.WSPingInterval(), cfg.WSWriteTimeout(), logger)
	a.closers = append(a.closers, hub.Close)
	sinks := events.Fanout{hub}
	if cfg.NATS.URL != "" {
		conn, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.Token)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: connect nats: %w", err)
		}
		publisher := events.NewNATSPublisher(conn, cfg.NATS.Subject)
		a.closers = append(a.closers, func() { _ = publisher.Close() })
		sinks = append(sinks, publisher)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.TokenTTL())
	deps := service.Deps{
		Store:   store,
		Fees:    fee.Policy{MotorbikeFlat: cfg.Fees.MotorbikeFlat, CarHourly: cfg.Fees.CarHourly},
		Hasher:  password.NewBcryptHasher(cfg.JWT.BcryptCost),
		Tokens:  tokens,
		Cache:   cache,
		Events:  sinks,
		Metrics: collector,
		Logger:  logger,
	}

	parkingService := service.NewParkingService(deps)
	cardService := service.NewCardService(deps)
	a.users = service.NewUserService(deps)
	authService := service.NewAuthService(deps)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logger)
	a.closers = append(a.closers, limiter.Stop)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandlers:    handlers.NewAuthHandlers(authService, logger),
		UserHandlers:    handlers.NewUserHandlers(a.users, logger),
		CardHandlers:    handlers.NewCardHandlers(cardService, parkingService, logger),
		ParkingHandlers: handlers.NewParkingHandlers(parkingService, logger),
		HealthHandler:   handlers.NewHealthHandler(pinger),
		Metrics:         metrics.Handler(registry),
		Events:          hub.ServeWS,
		Tokens:          tokens,
		RateLimiter:     limiter,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		Logger:          logger,
	})

	a.handler = router
	a.server = httpserver.NewServer(httpserver.ServerOptions{
		Addr:            cfg.HTTPAddress(),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router, logger)
	return a, nil
}

func (a *App) openStore() (service.Store, handlers.Pinger, error) {
	switch a.cfg.Database.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(a.cfg.TxTimeout()), nil, nil
	default:
		conn, err := db.NewPostgres(a.cfg.Database.DSN, a.cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, nil, fmt.Errorf("app: connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		if a.cfg.Database.AutoMigrate {
			if err := db.RunMigrations(a.cfg.Database.DSN); err != nil {
				return nil, nil, err
			}
			a.logger.Info("database migrations applied")
		}
		return repository.NewStore(conn, a.cfg.TxTimeout()), conn, nil
	}
}

// Handler exposes the routed handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run bootstraps the admin account when configured and serves HTTP traffic.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Admin.Email != "" {
		created, err := a.users.EnsureAdmin(ctx, a.cfg.Admin.Name, a.cfg.Admin.Email, a.cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("app: bootstrap admin: %w", err)
		}
		if created {
			a.logger.Info("admin account created", zap.String("email", a.cfg.Admin.Email))
		}
	}
	return a.server.Run(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
