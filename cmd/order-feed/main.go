package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/melkor648/apple-e-commerce/internal/config"
	"github.com/melkor648/apple-e-commerce/internal/events"
	"github.com/melkor648/apple-e-commerce/internal/websocket"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := cfg.NewLogger()

	subscriber, err := newSubscriber(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create event subscriber")
	}
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(cfg.Feed.AllowedOrigins, logger)
	go hub.Run(ctx)

	go func() {
		logger.WithFields(logrus.Fields{
			"bus":   cfg.Events.Bus,
			"topic": cfg.Events.Topic,
		}).Info("Starting order feed subscriber")
		if err := subscriber.Start(ctx, hub); err != nil {
			logger.WithError(err).Error("Order feed subscriber stopped")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "healthy",
			"service":      "order-feed",
			"client_count": hub.ClientCount(),
		})
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:        ":" + cfg.Feed.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Feed.Port).Info("Starting order feed server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down order feed...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Order feed stopped")
}

func newSubscriber(cfg *config.Config, logger *logrus.Logger) (events.Subscriber, error) {
	switch cfg.Events.Bus {
	case config.BusNATS:
		return events.NewNatsSubscriber(cfg.Events.NatsURL, cfg.Events.Topic, logger)
	case config.BusKafka:
		return events.NewKafkaConsumer(cfg.Events.KafkaBrokers, cfg.Feed.GroupID, cfg.Events.Topic, logger)
	default:
		logger.Fatal("EVENT_BUS must be kafka or nats for the order feed")
		return nil, nil
	}
}
