package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/RahulXTmCoding/desi-otaku-backend/api/routes"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/catalog"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/checkout"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/coupon"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/dispatch"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/invoices"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/notifications"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/orders"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/pricing"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/reconcile"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/rewards"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/shipping"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/metrics"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/migrate"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/outbox"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/razorpay"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/redis"
)

const dispatchTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(context.Background(), logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	requireResource(context.Background(), logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	razorpayClient, err := razorpay.NewClient(cfg.Razorpay, logg)
	requireResource(context.Background(), logg, "razorpay client", err)

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gdb := dbClient.DB()
	catalogRepo := catalog.NewRepository(gdb)
	couponRepo := coupon.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)

	pricingService, err := pricing.NewService(catalogRepo.Products(), catalogRepo.Designs(), cfg.Checkout, logg)
	requireResource(context.Background(), logg, "pricing service", err)

	couponValidator, err := coupon.NewValidator(couponRepo, ordersRepo)
	requireResource(context.Background(), logg, "coupon validator", err)

	rewardsService, err := rewards.NewService(dbClient, rewards.NewRepository(gdb), logg)
	requireResource(context.Background(), logg, "rewards service", err)

	reconcileService, err := reconcile.NewService(reconcile.NewRepository(gdb), razorpayClient, redisClient, cfg.Checkout, logg)
	requireResource(context.Background(), logg, "payment reconciler", err)

	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)

	ordersService, err := orders.NewService(dbClient, ordersRepo, outboxService, logg)
	requireResource(context.Background(), logg, "orders service", err)

	invoiceService, err := invoices.NewService(dbClient, invoices.NewRepository(gdb), ordersRepo, logg)
	requireResource(context.Background(), logg, "invoice service", err)

	emailSender, err := notifications.NewHTTPSender(cfg.Notifications.EmailEndpoint, cfg.Notifications.EmailAPIKey,
		cfg.Notifications.SendTimeout, cfg.Notifications.MaxRetries, logg)
	requireResource(context.Background(), logg, "email sender", err)

	smsSender, err := notifications.NewHTTPSender(cfg.Notifications.SMSEndpoint, cfg.Notifications.SMSAPIKey,
		cfg.Notifications.SendTimeout, cfg.Notifications.MaxRetries, logg)
	requireResource(context.Background(), logg, "sms sender", err)

	notifyService, err := notifications.NewService(emailSender, smsSender, cfg.Notifications, logg)
	requireResource(context.Background(), logg, "notifications service", err)

	carrier, err := shipping.NewHTTPCarrier(cfg.Shipping)
	requireResource(context.Background(), logg, "shipping carrier", err)

	shippingService, err := shipping.NewService(carrier, ordersRepo, logg)
	requireResource(context.Background(), logg, "shipping service", err)

	taskSet, err := checkout.NewTaskSet(notifyService, rewardsService, couponRepo, invoiceService, shippingService, cfg.Checkout)
	requireResource(context.Background(), logg, "checkout task set", err)

	dispatcher, err := dispatch.New(dispatchTimeout, logg, checkoutMetrics)
	requireResource(context.Background(), logg, "dispatcher", err)

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:         dbClient,
		Pricing:    pricingService,
		Coupons:    couponValidator,
		Rewards:    rewardsService,
		Reconciler: reconcileService,
		Orders:     ordersRepo,
		Outbox:     outboxService,
		Dispatcher: dispatcher,
		Tasks:      taskSet,
		Config:     cfg.Checkout,
		Metrics:    checkoutMetrics,
		Logger:     logg,
	})
	requireResource(context.Background(), logg, "checkout service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry,
			checkoutService, ordersService, rewardsService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
