package notify

import (
	"context"
	"fmt"

	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGrid struct {
	client  sendClient
	from    *mail.Email
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewSendGrid(apiKey, fromAddress, fromName string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *SendGrid {
	return newSendGrid(sendgrid.NewSendClient(apiKey), fromAddress, fromName, breaker, logger)
}

func newSendGrid(client sendClient, fromAddress, fromName string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *SendGrid {
	return &SendGrid{
		client:  client,
		from:    mail.NewEmail(fromName, fromAddress),
		breaker: breaker,
		logger:  logger,
	}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.Text, msg.HTML)

	var resp *rest.Response
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.client.SendWithContext(ctx, email)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429:
			// rejected request, the provider itself is healthy
			return circuitbreaker.Ignore(fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body))
		default:
			return fmt.Errorf("sendgrid error: status %d: %s", resp.StatusCode, resp.Body)
		}
	})
	if err != nil {
		s.logger.WithError(err).WithField("subject", msg.Subject).Error("Failed to send email")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"subject": msg.Subject,
		"status":  resp.StatusCode,
	}).Info("Email sent")

	return nil
}

var _ Sender = (*SendGrid)(nil)
