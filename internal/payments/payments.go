package payments

import (
	"context"
	"strings"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/melkor648/apple-e-commerce/internal/money"
	"github.com/sirupsen/logrus"
)

// Stripe caps a single charge at eight digits in the smallest unit.
const maxAmountMinor = 99_999_999

// Gateway creates payment intents for amounts already in minor units.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string) (string, error)
}

type Service struct {
	gateway         Gateway
	defaultCurrency string
	callTimeout     time.Duration
	logger          *logrus.Logger
}

func NewService(gateway Gateway, defaultCurrency string, callTimeout time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		gateway:         gateway,
		defaultCurrency: strings.ToLower(defaultCurrency),
		callTimeout:     callTimeout,
		logger:          logger,
	}
}

// CreateIntent returns the client secret for a new payment intent.
func (s *Service) CreateIntent(ctx context.Context, amount float64, currency string) (string, error) {
	const op = "create payment intent"

	if !money.Valid(amount) || amount == 0 {
		return "", apperror.Validation(op, "amount must be a positive number")
	}

	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return "", apperror.Validation(op, "currency must be a three-letter ISO code")
	}

	amountMinor, err := money.ToMinorUnits(amount)
	if err != nil || amountMinor > maxAmountMinor {
		return "", apperror.Validation(op, "amount is too large")
	}
	if amountMinor <= 0 {
		return "", apperror.Validation(op, "amount is below the smallest currency unit")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	secret, err := s.gateway.CreatePaymentIntent(callCtx, amountMinor, currency)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"amount_minor": amountMinor,
			"currency":     currency,
		}).Error("Failed to create payment intent")
		return "", apperror.Collaborator(op, err)
	}

	s.logger.WithFields(logrus.Fields{
		"amount_minor": amountMinor,
		"currency":     currency,
	}).Info("Payment intent created")

	return secret, nil
}

// Disabled answers every request with CollaboratorUnavailable.
type Disabled struct{}

func (Disabled) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	return "", apperror.Unavailable("create payment intent", nil, "payments are not configured")
}
