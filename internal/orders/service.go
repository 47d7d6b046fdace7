// Package orders implements the order-placement workflow: look up the
// buyer, record the order, confirm it by email and announce it.
package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/melkor648/apple-e-commerce/internal/events"
	"github.com/melkor648/apple-e-commerce/internal/metrics"
	"github.com/melkor648/apple-e-commerce/internal/money"
	"github.com/melkor648/apple-e-commerce/internal/notify"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/melkor648/apple-e-commerce/pkg/tracing"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	opPlaceOrder = "place order"
	opListOrders = "list orders"
)

type PlaceOrderInput struct {
	UserID string
	Cart   []any
	Total  *float64
}

type Placement struct {
	Order models.Order
}

type Service struct {
	directory   store.Directory
	ledger      store.Ledger
	sender      notify.Sender
	publisher   events.Publisher
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
	callTimeout time.Duration
	logger      *logrus.Logger
}

func NewService(directory store.Directory, ledger store.Ledger, sender notify.Sender, callTimeout time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		directory:   directory,
		ledger:      ledger,
		sender:      sender,
		publisher:   events.NopPublisher{},
		tracer:      tracing.NewNoopTracer(),
		callTimeout: callTimeout,
		logger:      logger,
	}
}

func (s *Service) SetPublisher(publisher events.Publisher) {
	s.publisher = publisher
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Service) SetTracer(tracer tracing.Tracer) {
	s.tracer = tracer
}

// PlaceOrder runs to completion even if ctx is cancelled by the caller.
// Nothing is rolled back: an order whose confirmation could not be sent
// stays in the ledger and the error is returned.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*Placement, error) {
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "orders.PlaceOrder")
	defer span.End()

	if err := validatePlaceOrder(input); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	userID := strings.TrimSpace(input.UserID)
	total := *input.Total
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.fetchUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	order := models.Order{
		UserID: userID,
		Cart:   input.Cart,
		Total:  total,
		Status: models.OrderStatusPending,
	}

	orderID, err := s.recordOrder(ctx, &order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	order.ID = orderID
	span.SetAttributes(attribute.String("order.id", orderID))
	s.metrics.OrderPlaced()

	logger := s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"user_id":  userID,
		"total":    money.FormatAmount(total),
	})
	logger.Info("Order recorded")

	sendErr := s.sendConfirmation(ctx, user, orderID, total)
	s.announce(ctx, order, sendErr == nil)

	if sendErr != nil {
		s.metrics.NotificationFailed()
		logger.WithError(sendErr).Error("Failed to send order confirmation")
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, sendErr.Error())
		return nil, sendErr
	}

	logger.Info("Order confirmation sent")
	return &Placement{Order: order}, nil
}

func validatePlaceOrder(input PlaceOrderInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return apperror.Validation(opPlaceOrder, "uid is required")
	}
	if input.Cart == nil {
		return apperror.Validation(opPlaceOrder, "cart is required")
	}
	if input.Total == nil {
		return apperror.Validation(opPlaceOrder, "total is required")
	}
	if !money.Valid(*input.Total) {
		return apperror.Validation(opPlaceOrder, "total must be a non-negative number")
	}
	return nil
}

func (s *Service) fetchUser(ctx context.Context, userID string) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "orders.fetchUser")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	user, err := s.directory.GetUser(callCtx, userID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.WithField("user_id", userID).Warn("Order placed for unknown user")
		return nil, apperror.NotFound(opPlaceOrder, "user %s not found", userID)
	}
	if err != nil {
		return nil, apperror.Collaborator(opPlaceOrder, err)
	}
	return user, nil
}

func (s *Service) recordOrder(ctx context.Context, order *models.Order) (string, error) {
	ctx, span := s.tracer.Start(ctx, "orders.recordOrder")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	orderID, err := s.ledger.AddOrder(callCtx, order)
	if err != nil {
		return "", apperror.Collaborator(opPlaceOrder, err)
	}
	return orderID, nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *models.User, orderID string, total float64) error {
	ctx, span := s.tracer.Start(ctx, "orders.sendConfirmation")
	defer span.End()

	msg, err := notify.OrderConfirmation(user, orderID, total)
	if err != nil {
		return apperror.Internal(opPlaceOrder, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := s.sender.Send(callCtx, msg); err != nil {
		return apperror.Collaborator(opPlaceOrder, err)
	}
	return nil
}

func (s *Service) announce(ctx context.Context, order models.Order, notificationSent bool) {
	ctx, span := s.tracer.Start(ctx, "orders.announce")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	event := events.OrderPlacedEvent{
		OrderID:          order.ID,
		UserID:           order.UserID,
		Total:            order.Total,
		Status:           string(order.Status),
		NotificationSent: notificationSent,
		CreatedAt:        createdAt,
	}
	if err := s.publisher.PublishOrderPlaced(callCtx, event); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to publish order placed event")
	}
}

// ListOrders returns a user's orders, oldest first. An unknown user has none.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.ListOrders")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperror.Validation(opListOrders, "uid is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	orders, err := s.ledger.ListOrdersByUser(callCtx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to list orders")
		return nil, apperror.Collaborator(opListOrders, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}
