// Package store defines the document-store contracts the storefront relies
// on. Backends live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/melkor648/apple-e-commerce/pkg/models"
)

const (
	UsersCollection    = "users"
	OrdersCollection   = "orders"
	ProductsCollection = "products"
)

var (
	ErrNotFound = errors.New("document not found")
)

// Directory holds user records keyed by the identity provider's uid.
type Directory interface {
	// GetUser returns ErrNotFound when no user has the given id.
	GetUser(ctx context.Context, id string) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error
}

// EmailIndex finds users by address, ignoring case where the backend can.
type EmailIndex interface {
	// UserByEmail returns ErrNotFound when no user has the address.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Ledger is append-only from the storefront's point of view.
type Ledger interface {
	AddOrder(ctx context.Context, order *models.Order) (string, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
}

type Catalog interface {
	AddProduct(ctx context.Context, product *models.Product) (string, error)
}

type Store interface {
	Directory
	EmailIndex
	Ledger
	Catalog
	Ping(ctx context.Context) error
	Close() error
}
