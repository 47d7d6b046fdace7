package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type mockSendClient struct {
	mock.Mock
}

func (m *mockSendClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rest.Response), args.Error(1)
}

func TestOrderConfirmation(t *testing.T) {
	user := &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}

	msg, err := OrderConfirmation(user, "order-1", 42.5)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Order Confirmation", msg.Subject)
	assert.Contains(t, msg.HTML, "<h2>Thanks for your order, Ada!</h2>")
	assert.Contains(t, msg.HTML, "<p>Order ID: order-1</p>")
	assert.Contains(t, msg.HTML, "<p>Total: $42.50</p>")
	assert.Contains(t, msg.Text, "Total: $42.50")
}

func TestOrderConfirmationRoundsTotal(t *testing.T) {
	msg, err := OrderConfirmation(&models.User{Name: "Ada"}, "o", 10.005)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "$10.01")
}

func TestOrderConfirmationEscapesName(t *testing.T) {
	msg, err := OrderConfirmation(&models.User{Name: "<script>x</script>"}, "o", 1)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
}

func TestSendGridSend(t *testing.T) {
	client := new(mockSendClient)
	sender := newSendGrid(client, "yourshop@example.com", "Shop", nil, newTestLogger())

	client.On("SendWithContext", mock.Anything, mock.AnythingOfType("*mail.SGMailV3")).
		Return(&rest.Response{StatusCode: 202}, nil).
		Run(func(args mock.Arguments) {
			email := args.Get(1).(*mail.SGMailV3)
			assert.Equal(t, "yourshop@example.com", email.From.Address)
			assert.Equal(t, "Order Confirmation", email.Subject)
			require.Len(t, email.Personalizations, 1)
			assert.Equal(t, "ada@example.com", email.Personalizations[0].To[0].Address)
		})

	err := sender.Send(context.Background(), Message{
		To:      "ada@example.com",
		Subject: "Order Confirmation",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSendGridRejectedMessageDoesNotTripBreaker(t *testing.T) {
	client := new(mockSendClient)
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "email", MaxFailures: 1, Timeout: time.Minute}, newTestLogger())
	sender := newSendGrid(client, "yourshop@example.com", "", breaker, newTestLogger())

	client.On("SendWithContext", mock.Anything, mock.Anything).
		Return(&rest.Response{StatusCode: 400, Body: `{"errors":[{"message":"invalid email"}]}`}, nil)

	err := sender.Send(context.Background(), Message{To: "not-an-email", Subject: "s", Text: "t", HTML: "h"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
}

func TestSendGridServerErrorTripsBreaker(t *testing.T) {
	client := new(mockSendClient)
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "email", MaxFailures: 1, Timeout: time.Minute}, newTestLogger())
	sender := newSendGrid(client, "yourshop@example.com", "", breaker, newTestLogger())

	client.On("SendWithContext", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()

	err := sender.Send(context.Background(), Message{To: "ada@example.com", Subject: "s", Text: "t", HTML: "h"})
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	err = sender.Send(context.Background(), Message{To: "ada@example.com", Subject: "s", Text: "t", HTML: "h"})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	client.AssertNumberOfCalls(t, "SendWithContext", 1)
}

func TestLogSender(t *testing.T) {
	sender := NewLogSender(newTestLogger())
	assert.NoError(t, sender.Send(context.Background(), Message{To: "ada@example.com", Subject: "s"}))
}
