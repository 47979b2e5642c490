package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridefare/internal/app"
	"ridefare/internal/auth"
	"ridefare/internal/config"
	"ridefare/internal/fare"
	"ridefare/internal/handler"
	"ridefare/internal/logger"
	"ridefare/internal/payment"
	"ridefare/internal/rabbit"
	internalRedis "ridefare/internal/redis"
	"ridefare/internal/repository/postgres"
	"ridefare/internal/service"
)

const serviceName = "ridefare"

func main() {
	cfg := config.Load()
	log := logger.New(serviceName, cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("new relic disabled", slog.Any("error", err))
		} else {
			log.Info("new relic enabled", slog.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		fatal(log, "connect to database", err)
	}
	defer db.Close()
	log.Info("connected to postgres")

	if cfg.Database.Migrate {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			fatal(log, "migrate database", err)
		}
		log.Info("migrations applied", slog.Any("files", applied))
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		fatal(log, "connect to redis", err)
	}
	defer redisClient.Close()
	log.Info("connected to redis")

	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		p, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			fatal(log, "connect to rabbitmq", err)
		}
		defer p.Close()
		publisher = p
		log.Info("publishing ride events", slog.String("exchange", cfg.RabbitMQ.Exchange))
	}

	server, err := wireServer(db, redisClient, nrApp, publisher, cfg, log)
	if err != nil {
		fatal(log, "wire server", err)
	}

	go func() {
		log.Info("starting server", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher service.EventPublisher,
	cfg *config.Config,
	log *slog.Logger,
) (*http.Server, error) {
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	txRunner := postgres.NewTxRunner(db)

	fareCfg := fare.DefaultConfig()
	fareCfg.BookingFee = cfg.Fare.BookingFee
	fareCfg.TaxRate = cfg.Fare.TaxRate
	fareCfg.Currency = cfg.Fare.Currency
	calculator, err := fare.New(fareCfg)
	if err != nil {
		return nil, err
	}

	gateway, err := newGateway(cfg.Payments)
	if err != nil {
		return nil, err
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return nil, err
	}

	notificationService := service.NewNotificationService(publisher, log)
	surgeService := service.NewSurgeService(locationStore, rideRepo, log)
	fareService := service.NewFareService(calculator, surgeService, log)
	rideService := service.NewRideService(service.RideServiceDeps{
		RideRepo:    rideRepo,
		DriverRepo:  driverRepo,
		PaymentRepo: paymentRepo,
		TxRunner:    txRunner,
		LockStore:   lockStore,
		RideCache:   cacheStore,
		Fares:       fareService,
		Gateway:     gateway,
		Notifier:    notificationService,
		Log:         log,
	})
	paymentService := service.NewPaymentService(paymentRepo, userRepo, rideService, gateway, log)
	receiptService := service.NewReceiptService(rideService, notificationService)
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, log)
	userService := service.NewUserService(userRepo, gateway, log)

	router := app.NewRouter(app.RouterDeps{
		FareHandler:    handler.NewFareHandler(fareService),
		RideHandler:    handler.NewRideHandler(rideService, receiptService),
		DriverHandler:  handler.NewDriverHandler(driverService),
		UserHandler:    handler.NewUserHandler(userService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		Verifier:       verifier,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}

func newGateway(cfg config.PaymentsConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		if cfg.SecretKey == "" {
			return nil, errors.New("STRIPE_SECRET_KEY is required for the stripe provider")
		}
		return payment.NewStripeGateway(cfg.SecretKey, cfg.WebhookSecret, cfg.Description), nil
	case "mock", "":
		gw := payment.NewMockGateway(cfg.WebhookSecret)
		gw.AutoSucceed = cfg.MockAutoPay
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

func newVerifier(cfg config.AuthConfig) (*auth.Verifier, error) {
	if cfg.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read auth public key: %w", err)
		}
		return auth.NewRSAVerifier(pem, cfg.Issuer)
	}
	if cfg.Secret == "" {
		return nil, errors.New("AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY_FILE must be set")
	}
	return auth.NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer), nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
