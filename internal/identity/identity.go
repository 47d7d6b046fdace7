package identity

import (
	"context"
	"errors"
)

var (
	ErrEmailExists = errors.New("email already registered")
)

// Provider creates login identities and returns their uid.
type Provider interface {
	CreateUser(ctx context.Context, email, password, name string) (string, error)
}
