package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RahulXTmCoding/desi-otaku-backend/api/controllers"
	"github.com/RahulXTmCoding/desi-otaku-backend/api/middleware"
	checkoutsvc "github.com/RahulXTmCoding/desi-otaku-backend/internal/checkout"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/orders"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/rewards"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	pkgredis "github.com/RahulXTmCoding/desi-otaku-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	registry *prometheus.Registry,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	rewardsService rewards.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cache interface {
		Ping(ctx context.Context) error
	}
	var idempotencyStore pkgredis.IdempotencyStore
	if redisClient != nil {
		cache = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, cache, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/quote", controllers.QuoteCart(checkoutService, logg))
			r.Post("/commit", controllers.CommitOrder(checkoutService, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(ordersService, logg))
		})
		r.Get("/rewards/balance", controllers.RewardBalance(rewardsService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Patch("/orders/{orderID}/status", controllers.AdminUpdateOrderStatus(ordersService, logg))
	})

	return r
}
