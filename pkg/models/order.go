package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "Pending"
)

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Cart      []any       `json:"cart"`
	Total     float64     `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

type PlaceOrderRequest struct {
	UID   string   `json:"uid"`
	Cart  []any    `json:"cart"`
	Total *float64 `json:"total"`
}

type PlaceOrderResponse struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

type PaymentIntentRequest struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency,omitempty"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
