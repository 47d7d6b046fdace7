package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/melkor648/apple-e-commerce/internal/identity"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	opRegister = "register user"

	minPasswordLength = 6
	// bcrypt rejects longer passwords
	maxPasswordBytes = 72
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type Service struct {
	identity    identity.Provider
	directory   store.Directory
	callTimeout time.Duration
	logger      *logrus.Logger
}

func NewService(provider identity.Provider, directory store.Directory, callTimeout time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		identity:    provider,
		directory:   directory,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Register creates the login identity, then the user document under the same
// uid. If the document write fails the identity is left in place.
func (s *Service) Register(ctx context.Context, input RegisterInput) (string, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return "", apperror.Validation(opRegister, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperror.Validation(opRegister, "email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		return "", apperror.Validation(opRegister, "password must be at least %d characters", minPasswordLength)
	}
	if len(input.Password) > maxPasswordBytes {
		return "", apperror.Validation(opRegister, "password must be at most %d bytes", maxPasswordBytes)
	}

	createCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	uid, err := s.identity.CreateUser(createCtx, email, input.Password, input.Name)
	cancel()
	if errors.Is(err, identity.ErrEmailExists) {
		return "", apperror.Conflict(opRegister, err, "email already registered")
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to create identity")
		return "", apperror.Collaborator(opRegister, err)
	}

	putCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	user := &models.User{
		ID:    uid,
		Name:  input.Name,
		Email: email,
	}
	if err := s.directory.PutUser(putCtx, user); err != nil {
		s.logger.WithError(err).WithField("uid", uid).Error("Identity created but user document write failed")
		return "", apperror.Collaborator(opRegister, err)
	}

	s.logger.WithField("uid", uid).Info("User registered")
	return uid, nil
}
