package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	args := m.Called(ctx, amountMinor, currency)
	return args.String(0), args.Error(1)
}

func newTestService(gateway Gateway) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewService(gateway, "USD", time.Second, logger)
}

func TestCreateIntentConvertsToMinorUnits(t *testing.T) {
	gateway := new(MockGateway)
	service := newTestService(gateway)

	gateway.On("CreatePaymentIntent", mock.Anything, int64(2000), "usd").Return("pi_secret", nil)

	secret, err := service.CreateIntent(context.Background(), 19.999, "")

	require.NoError(t, err)
	assert.Equal(t, "pi_secret", secret)
	gateway.AssertExpectations(t)
}

func TestCreateIntentNormalizesCurrency(t *testing.T) {
	gateway := new(MockGateway)
	service := newTestService(gateway)

	gateway.On("CreatePaymentIntent", mock.Anything, int64(1050), "eur").Return("pi_eur", nil)

	secret, err := service.CreateIntent(context.Background(), 10.5, " EUR ")

	require.NoError(t, err)
	assert.Equal(t, "pi_eur", secret)
}

func TestCreateIntentValidation(t *testing.T) {
	gateway := new(MockGateway)
	service := newTestService(gateway)

	tests := []struct {
		name     string
		amount   float64
		currency string
	}{
		{"zero_amount", 0, ""},
		{"negative_amount", -5, ""},
		{"sub_cent_amount", 0.004, ""},
		{"bad_currency", 10, "dollars"},
		{"above_charge_limit", 1_000_000, ""},
		{"overflows_minor_units", 1e17, ""},
		{"wraps_positive", 2e17, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateIntent(context.Background(), tt.amount, tt.currency)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}

	gateway.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateIntentAmountTooLarge(t *testing.T) {
	gateway := new(MockGateway)
	service := newTestService(gateway)

	_, err := service.CreateIntent(context.Background(), 2e17, "")

	require.Error(t, err)
	assert.Equal(t, "amount is too large", err.Error())
	gateway.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateIntentAcceptsChargeLimit(t *testing.T) {
	gateway := new(MockGateway)
	service := newTestService(gateway)

	gateway.On("CreatePaymentIntent", mock.Anything, int64(maxAmountMinor), "usd").Return("pi_max", nil)

	secret, err := service.CreateIntent(context.Background(), 999_999.99, "")

	require.NoError(t, err)
	assert.Equal(t, "pi_max", secret)
}

func TestCreateIntentGatewayFailure(t *testing.T) {
	gateway := new(MockGateway)
	service := newTestService(gateway)

	gateway.On("CreatePaymentIntent", mock.Anything, int64(500), "usd").
		Return("", errors.New("stripe: api key invalid"))

	_, err := service.CreateIntent(context.Background(), 5, "usd")

	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, "stripe: api key invalid", err.Error())
}

func TestDisabledGateway(t *testing.T) {
	service := newTestService(Disabled{})

	_, err := service.CreateIntent(context.Background(), 5, "usd")

	assert.Equal(t, apperror.KindUnavailable, apperror.KindOf(err))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, isClientError(&stripe.Error{Type: stripe.ErrorTypeInvalidRequest}))
	assert.True(t, isClientError(&stripe.Error{Type: stripe.ErrorTypeCard}))
	assert.False(t, isClientError(&stripe.Error{Type: stripe.ErrorTypeAPI}))
	assert.False(t, isClientError(errors.New("network down")))
	assert.False(t, isClientError(nil))
}
