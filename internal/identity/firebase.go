package identity

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/sirupsen/logrus"
)

type Firebase struct {
	client  *auth.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewFirebase(client *auth.Client, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *Firebase {
	return &Firebase{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

func (f *Firebase) CreateUser(ctx context.Context, email, password, name string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password)
	if name != "" {
		params = params.DisplayName(name)
	}

	var record *auth.UserRecord
	err := f.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		record, err = f.client.CreateUser(ctx, params)
		if auth.IsEmailAlreadyExists(err) {
			return circuitbreaker.Ignore(fmt.Errorf("%w: %s", ErrEmailExists, email))
		}
		return err
	})
	if err != nil {
		return "", err
	}

	f.logger.WithField("uid", record.UID).Info("Firebase user created")
	return record.UID, nil
}

var _ Provider = (*Firebase)(nil)
