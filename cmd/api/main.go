package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/melkor648/apple-e-commerce/internal/accounts"
	"github.com/melkor648/apple-e-commerce/internal/api"
	"github.com/melkor648/apple-e-commerce/internal/catalog"
	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/internal/config"
	"github.com/melkor648/apple-e-commerce/internal/events"
	"github.com/melkor648/apple-e-commerce/internal/identity"
	"github.com/melkor648/apple-e-commerce/internal/metrics"
	"github.com/melkor648/apple-e-commerce/internal/notify"
	"github.com/melkor648/apple-e-commerce/internal/orders"
	"github.com/melkor648/apple-e-commerce/internal/payments"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/internal/store/firestoredb"
	"github.com/melkor648/apple-e-commerce/internal/store/memory"
	"github.com/melkor648/apple-e-commerce/internal/store/mongodb"
	"github.com/melkor648/apple-e-commerce/internal/store/postgres"
	"github.com/melkor648/apple-e-commerce/pkg/diagnostics"
	"github.com/melkor648/apple-e-commerce/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const (
	breakerDirectory = "directory"
	breakerIdentity  = "identity"
	breakerEmail     = "email"
	breakerPayments  = "payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := cfg.NewLogger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	breakers := circuitbreaker.NewManager(circuitbreaker.Config{
		MaxFailures:   cfg.Breaker.MaxFailures,
		Timeout:       cfg.Breaker.Timeout,
		MaxRequests:   cfg.Breaker.MaxRequests,
		OnStateChange: m.BreakerStateChanged,
	}, logger)
	for _, name := range []string{breakerDirectory, breakerIdentity, breakerEmail, breakerPayments} {
		m.SetBreakerState(name, breakers.GetOrCreate(name).State())
	}

	tracer, err := newTracer(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create tracer")
	}
	if cfg.Tracing.Enabled {
		logger.WithFields(logrus.Fields{
			"service":  cfg.Tracing.ServiceName,
			"endpoint": cfg.Tracing.OTLPEndpoint,
		}).Info("Tracing enabled")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 90*time.Second)
	db, provider, err := openStore(startCtx, cfg, breakers, logger)
	cancelStart()
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer db.Close()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create event publisher")
	}
	defer publisher.Close()

	orderService := orders.NewService(db, db, newSender(cfg, breakers, logger), cfg.HTTP.CallTimeout, logger)
	orderService.SetPublisher(publisher)
	orderService.SetMetrics(m)
	orderService.SetTracer(tracer)

	handler := api.NewHandler(
		accounts.NewService(provider, db, cfg.HTTP.CallTimeout, logger),
		catalog.NewService(db, cfg.HTTP.CallTimeout, logger),
		orderService,
		payments.NewService(newGateway(cfg, breakers, logger), cfg.Stripe.DefaultCurrency, cfg.HTTP.CallTimeout, logger),
		db,
		breakers,
		logger,
	)

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Feed.AllowedOrigins,
		Metrics:        m,
		Tracer:         tracer,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTP.CallTimeout*4 + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	diag := diagnostics.NewServer(cfg.HTTP.DiagnosticsPort, registry)
	go func() {
		logger.WithField("port", cfg.HTTP.DiagnosticsPort).Info("Starting diagnostics server")
		if err := diag.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Diagnostics server stopped")
		}
	}()

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.HTTP.Port,
			"backend": cfg.Store.Backend,
			"bus":     cfg.Events.Bus,
		}).Info("Starting storefront API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := diag.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Diagnostics server forced to shutdown")
	}
	if err := tracer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Failed to flush traces")
	}

	logger.Info("Server gracefully stopped")
}

// openStore returns the configured backend and the identity provider that
// goes with it. Only Firestore has a hosted identity service.
func openStore(ctx context.Context, cfg *config.Config, breakers *circuitbreaker.Manager, logger *logrus.Logger) (store.Store, identity.Provider, error) {
	directoryBreaker := breakers.GetOrCreate(breakerDirectory)

	switch cfg.Store.Backend {
	case config.BackendFirestore:
		var fbConfig *firebase.Config
		if cfg.Firebase.ProjectID != "" {
			fbConfig = &firebase.Config{ProjectID: cfg.Firebase.ProjectID}
		}

		app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize firebase: %w", err)
		}
		fsClient, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			fsClient.Close()
			return nil, nil, fmt.Errorf("failed to create auth client: %w", err)
		}

		logger.Info("Using Firestore store with Firebase Auth")
		return firestoredb.NewStore(fsClient, directoryBreaker, logger),
			identity.NewFirebase(authClient, breakers.GetOrCreate(breakerIdentity), logger),
			nil

	case config.BackendMongo:
		db, err := mongodb.NewStore(cfg.Mongo.URI, cfg.Mongo.DB, directoryBreaker, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using MongoDB store with local identities")
		return db, identity.NewLocal(db, logger), nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres.DSN, directoryBreaker, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using PostgreSQL store with local identities")
		return db, identity.NewLocal(db, logger), nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		db := memory.NewStore()
		return db, identity.NewLocal(db, logger), nil
	}
}

func newTracer(cfg *config.Config) (tracing.Tracer, error) {
	switch {
	case !cfg.Tracing.Enabled:
		return tracing.NewNoopTracer(), nil
	case cfg.Tracing.OTLPEndpoint != "":
		return tracing.NewOTLPTracer(context.Background(), cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
	default:
		return tracing.NewStdoutTracer(cfg.Tracing.ServiceName, os.Stdout)
	}
}

func newSender(cfg *config.Config, breakers *circuitbreaker.Manager, logger *logrus.Logger) notify.Sender {
	if cfg.Mail.SendGridAPIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set, order confirmations will only be logged")
		return notify.NewLogSender(logger)
	}
	return notify.NewSendGrid(cfg.Mail.SendGridAPIKey, cfg.Mail.FromAddress, cfg.Mail.FromName, breakers.GetOrCreate(breakerEmail), logger)
}

func newGateway(cfg *config.Config, breakers *circuitbreaker.Manager, logger *logrus.Logger) payments.Gateway {
	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, payment intents are disabled")
		return payments.Disabled{}
	}
	return payments.NewStripe(cfg.Stripe.SecretKey, breakers.GetOrCreate(breakerPayments), logger)
}

func newPublisher(cfg *config.Config, logger *logrus.Logger) (events.Publisher, error) {
	switch cfg.Events.Bus {
	case config.BusKafka:
		return events.NewKafkaProducer(cfg.Events.KafkaBrokers, cfg.Events.Topic, logger)
	case config.BusNATS:
		return events.NewNatsPublisher(cfg.Events.NatsURL, cfg.Events.Topic, logger)
	default:
		return events.NopPublisher{}, nil
	}
}
