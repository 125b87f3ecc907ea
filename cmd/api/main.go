package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/deliveries"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/internal/users"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	gcsClient, err := gcs.NewClient(bootCtx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, gcsClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stripeClient, err := stripe.NewClient(bootCtx, cfg.Stripe, metrics.NewGatewayMetrics(registry), logg)
	if err != nil {
		return err
	}

	var sender mailer.Sender = mailer.Noop{}
	if cfg.Sendgrid.APIKey != "" {
		sg, err := mailer.NewSendGrid(cfg.Sendgrid)
		if err != nil {
			return err
		}
		sender = sg
	} else {
		logg.Warn(bootCtx, "sendgrid api key not set; notification emails are discarded")
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	addressRepo := address.NewRepository(gormDB)
	ledger := inventory.NewLedger(gormDB, metrics.NewInventoryMetrics(registry))
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	dispatcher, err := notifications.NewDispatcher(cfg.Notifications, sender, usersRepo, logg)
	if err != nil {
		return err
	}

	cartRepo, err := cart.NewRepository(redisClient, cfg.Cart.TTL)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cartRepo, ledger)
	if err != nil {
		return err
	}
	addressService, err := address.NewService(addressRepo)
	if err != nil {
		return err
	}
	couponService, err := coupons.NewService(coupons.NewRepository(gormDB), usersRepo, dbClient, logg)
	if err != nil {
		return err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:     cartService,
		Addresses: addressRepo,
		Coupons:   couponService,
		SKUs:      ledger,
		Gateway:   stripeClient,
		ClientURL: cfg.App.ClientURL,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Outbox:   emitter,
		Notifier: dispatcher,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	deliveryService, err := deliveries.NewService(deliveries.ServiceParams{
		Repo:      deliveries.NewRepository(gormDB),
		Orders:    ordersRepo,
		Addresses: addressRepo,
		Users:     usersRepo,
		Ledger:    ledger,
		Storage:   gcsClient,
		Tx:        dbClient,
		Outbox:    emitter,
		Notifier:  dispatcher,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	refundService, err := refunds.NewService(refunds.ServiceParams{
		Repo:           refunds.NewRepository(gormDB),
		Orders:         ordersRepo,
		Gateway:        stripeClient,
		Tx:             dbClient,
		Outbox:         emitter,
		Notifier:       dispatcher,
		Logger:         logg,
		GatewayTimeout: cfg.Stripe.Timeout,
	})
	if err != nil {
		return err
	}
	returnService, err := returns.NewService(returns.ServiceParams{
		Repo:     returns.NewRepository(gormDB),
		Orders:   ordersRepo,
		Ledger:   ledger,
		Refunds:  refundService,
		Storage:  gcsClient,
		Tx:       dbClient,
		Outbox:   emitter,
		Notifier: dispatcher,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Tx:        dbClient,
		Orders:    ordersRepo,
		Addresses: addressRepo,
		Ledger:    ledger,
		Coupons:   couponService,
		Carts:     cartService,
		Outbox:    emitter,
		Notifier:  dispatcher,
		Metrics:   metrics.NewWebhookMetrics(registry),
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	webhookGuard, err := stripewebhook.NewGuard(redisClient, cfg.Stripe.IdempotencyTTL)
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.Params{
		Config: cfg,
		Logger: logg,
		Health: []controllers.Dependency{
			{Name: "postgres", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
			{Name: "gcs", Pinger: gcsClient},
		},
		Metrics:              registry,
		IdempotencyStore:     redisClient,
		Cart:                 cartService,
		Addresses:            addressService,
		Checkout:             checkoutService,
		Coupons:              couponService,
		Orders:               ordersService,
		Deliveries:           deliveryService,
		Returns:              returnService,
		Refunds:              refundService,
		Inventory:            ledger,
		StripeVerifier:       stripeClient,
		StripeWebhookService: webhookService,
		StripeWebhookGuard:   webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatcher.Run(context.WithoutCancel(groupCtx))
	})
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)
		dispatcher.Close()
		return shutdownErr
	})

	return group.Wait()
}
