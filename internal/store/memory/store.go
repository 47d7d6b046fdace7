package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
)

// Store keeps every collection in process memory. Used for local runs and
// tests.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	products map[string]*models.Product
	orders   []*models.Order
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*models.User),
		products: make(map[string]*models.Product),
		now:      time.Now,
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	userCopy := *user
	return &userCopy, nil
}

func (s *Store) PutUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userCopy := *user
	userCopy.CreatedAt = s.now()
	s.users[user.ID] = &userCopy
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			userCopy := *user
			return &userCopy, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) AddOrder(ctx context.Context, order *models.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderCopy := *order
	orderCopy.ID = uuid.New().String()
	orderCopy.CreatedAt = s.now()
	s.orders = append(s.orders, &orderCopy)
	return orderCopy.ID, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := []models.Order{}
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (s *Store) AddProduct(ctx context.Context, product *models.Product) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	productCopy := *product
	productCopy.ID = uuid.New().String()
	productCopy.CreatedAt = s.now()
	s.products[productCopy.ID] = &productCopy
	return productCopy.ID, nil
}

// Product is a test helper; the storefront never reads products back.
func (s *Store) Product(id string) (*models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, false
	}
	productCopy := *product
	return &productCopy, true
}

func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

var _ store.Store = (*Store)(nil)
