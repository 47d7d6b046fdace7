package websocket

import (
	"context"

	"github.com/melkor648/apple-e-commerce/internal/events"
)

const (
	MessageTypeOrderPlaced = "order_placed"
	feedSource             = "order-feed"
)

// HandleOrderPlaced fans an order event out to every connected client.
func (h *Hub) HandleOrderPlaced(ctx context.Context, event events.OrderPlacedEvent) error {
	h.Broadcast(MessageTypeOrderPlaced, event, feedSource)
	return nil
}

var _ events.OrderPlacedHandler = (*Hub)(nil)
