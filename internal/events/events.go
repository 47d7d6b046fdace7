package events

import (
	"context"
	"time"
)

const (
	DefaultOrderPlacedTopic = "order.placed"
)

type OrderPlacedEvent struct {
	OrderID          string    `json:"order_id"`
	UserID           string    `json:"user_id"`
	Total            float64   `json:"total"`
	Status           string    `json:"status"`
	NotificationSent bool      `json:"notification_sent"`
	CreatedAt        time.Time `json:"created_at"`
	EventTime        time.Time `json:"event_time"`
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error
	Close() error
}

type OrderPlacedHandler interface {
	HandleOrderPlaced(ctx context.Context, event OrderPlacedEvent) error
}

// Subscriber delivers events to a handler until ctx is cancelled.
type Subscriber interface {
	Start(ctx context.Context, handler OrderPlacedHandler) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
