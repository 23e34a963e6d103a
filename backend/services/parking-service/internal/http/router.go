package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/http/handlers"
	"parkcard/backend/services/parking-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies. Metrics, Events and RateLimiter are optional.
type RouterDeps struct {
	AuthHandlers    *handlers.AuthHandlers
	UserHandlers    *handlers.UserHandlers
	CardHandlers    *handlers.CardHandlers
	ParkingHandlers *handlers.ParkingHandlers
	HealthHandler   http.HandlerFunc
	Metrics         http.Handler
	Events          http.HandlerFunc
	Tokens          middleware.TokenValidator
	RateLimiter     *middleware.RateLimiter
	CORSOrigins     []string
	Logger          *zap.Logger
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoveryMiddleware(deps.Logger))
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	r.Use(corsHandler(deps.CORSOrigins))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware)
	}

	r.Get("/health", deps.HealthHandler)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	authenticated := middleware.AuthMiddleware(deps.Tokens)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", deps.AuthHandlers.Login)
		r.Post("/admin/login", deps.AuthHandlers.AdminLogin)
	})

	r.Route("/cards/{card_id}", func(r chi.Router) {
		r.Get("/", deps.CardHandlers.Info)
		r.Get("/history", deps.CardHandlers.PublicHistory)
		r.Post("/recharge", deps.CardHandlers.Recharge)
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/card", deps.CardHandlers.MyCard)
		r.Get("/history", deps.CardHandlers.MyHistory)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticated, middleware.RequireAdmin)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", deps.UserHandlers.Create)
			r.Get("/", deps.UserHandlers.List)
			r.Get("/{user_id}", deps.UserHandlers.Get)
			r.Delete("/{user_id}", deps.UserHandlers.Delete)
		})

		r.Post("/cards", deps.CardHandlers.Register)
		r.Route("/cards/{card_id}", func(r chi.Router) {
			r.Get("/", deps.CardHandlers.Details)
			r.Delete("/", deps.CardHandlers.Deactivate)
			r.Post("/reactivate", deps.CardHandlers.Reactivate)
			r.Post("/recharge", deps.CardHandlers.Recharge)
			r.Get("/history", deps.CardHandlers.History)
			r.Get("/reconcile", deps.CardHandlers.Reconcile)
			r.Post("/parking/checkin", deps.ParkingHandlers.CheckIn)
			r.Post("/parking/checkout", deps.ParkingHandlers.CheckOut)
			r.Get("/parking/status", deps.ParkingHandlers.Status)
		})
	})

	if deps.Events != nil {
		r.With(middleware.WSAuthMiddleware(deps.Tokens), middleware.RequireAdmin).Get("/ws/events", deps.Events)
	}

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, o := range origins {
		if o == "*" {
			allowCredentials = false
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
