package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type NatsPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *logrus.Logger
}

type NatsSubscriber struct {
	nc      *nats.Conn
	subject string
	logger  *logrus.Logger
}

func connectNats(url, name string, logger *logrus.Logger) (*nats.Conn, error) {
	var nc *nats.Conn
	var err error

	for i := 0; i < 3; i++ {
		nc, err = nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				logger.WithError(err).Warn("NATS disconnected")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
			}),
		)
		if err == nil {
			logger.WithField("url", url).Info("Connected to NATS")
			return nc, nil
		}

		logger.WithError(err).WithField("attempt", i+1).Warn("Failed to connect to NATS")
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
}

func NewNatsPublisher(url, subject string, logger *logrus.Logger) (*NatsPublisher, error) {
	nc, err := connectNats(url, "storefront-api", logger)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{nc: nc, subject: subject, logger: logger}, nil
}

func (p *NatsPublisher) PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":  p.subject,
		"order_id": event.OrderID,
	}).Info("Event published to NATS")

	return nil
}

func (p *NatsPublisher) Close() error {
	if p.nc != nil && !p.nc.IsClosed() {
		p.nc.Close()
		p.logger.Info("NATS connection closed")
	}
	return nil
}

func NewNatsSubscriber(url, subject string, logger *logrus.Logger) (*NatsSubscriber, error) {
	nc, err := connectNats(url, "storefront-order-feed", logger)
	if err != nil {
		return nil, err
	}
	return &NatsSubscriber{nc: nc, subject: subject, logger: logger}, nil
}

func (s *NatsSubscriber) Start(ctx context.Context, handler OrderPlacedHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		event, err := decodeOrderPlaced(msg.Data)
		if err != nil {
			s.logger.WithError(err).Error("Failed to decode NATS message")
			return
		}
		if err := handler.HandleOrderPlaced(ctx, event); err != nil {
			s.logger.WithError(err).WithField("order_id", event.OrderID).Error("Failed to handle message")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.logger.WithField("subject", s.subject).Info("Subscribed to NATS")

	<-ctx.Done()
	return sub.Unsubscribe()
}

func (s *NatsSubscriber) Close() error {
	if !s.nc.IsClosed() {
		s.nc.Close()
	}
	return nil
}

var (
	_ Publisher  = (*NatsPublisher)(nil)
	_ Subscriber = (*NatsSubscriber)(nil)
)
