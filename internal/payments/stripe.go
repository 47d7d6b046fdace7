package payments

import (
	"context"
	"errors"

	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Stripe struct {
	api     *client.API
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewStripe(secretKey string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &Stripe{
		api:     api,
		breaker: breaker,
		logger:  logger,
	}
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
	}

	var intent *stripe.PaymentIntent
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		params.Context = ctx

		var err error
		intent, err = s.api.PaymentIntents.New(params)
		if isClientError(err) {
			return circuitbreaker.Ignore(err)
		}
		return err
	})
	if err != nil {
		return "", err
	}

	s.logger.WithField("payment_intent", intent.ID).Debug("Stripe payment intent created")
	return intent.ClientSecret, nil
}

// isClientError reports Stripe errors caused by the request itself.
func isClientError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeCard, stripe.ErrorTypeIdempotency:
		return true
	}
	return false
}

var _ Gateway = (*Stripe)(nil)
