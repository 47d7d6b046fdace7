package firestoredb

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Store struct {
	client  *firestore.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewStore(client *firestore.Client, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *Store {
	return &Store{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	ref := s.client.Collection(store.UsersCollection).Doc(id)
	if ref == nil {
		// ids containing a slash do not name a document
		return nil, store.ErrNotFound
	}

	var snap *firestore.DocumentSnapshot
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, err = ref.Get(ctx)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if snap == nil || !snap.Exists() {
		return nil, store.ErrNotFound
	}

	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}

	return toUserModel(snap.Ref.ID, &doc), nil
}

func (s *Store) PutUser(ctx context.Context, user *models.User) error {
	ref := s.client.Collection(store.UsersCollection).Doc(user.ID)
	if ref == nil {
		return fmt.Errorf("invalid user id %q", user.ID)
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := ref.Set(ctx, toUserDocument(user))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Debug("User document written")
	return nil
}

// UserByEmail matches the address exactly; Firestore has no case-insensitive
// equality.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var snaps []*firestore.DocumentSnapshot
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		snaps, err = s.client.Collection(store.UsersCollection).
			Where("email", "==", email).
			Limit(1).
			Documents(ctx).
			GetAll()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	if len(snaps) == 0 {
		return nil, store.ErrNotFound
	}

	var doc userDocument
	if err := snaps[0].DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", snaps[0].Ref.ID, err)
	}

	return toUserModel(snaps[0].Ref.ID, &doc), nil
}

func (s *Store) AddOrder(ctx context.Context, order *models.Order) (string, error) {
	var ref *firestore.DocumentRef
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		ref, _, err = s.client.Collection(store.OrdersCollection).Add(ctx, toOrderDocument(order))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}

	return ref.ID, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var snaps []*firestore.DocumentSnapshot
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		snaps, err = s.client.Collection(store.OrdersCollection).
			Where("userId", "==", userID).
			Documents(ctx).
			GetAll()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := make([]models.Order, 0, len(snaps))
	for _, snap := range snaps {
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, toOrderModel(snap.Ref.ID, &doc))
	}

	// sorting here avoids a composite index on (userId, createdAt)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	return orders, nil
}

func (s *Store) AddProduct(ctx context.Context, product *models.Product) (string, error) {
	var ref *firestore.DocumentRef
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		ref, _, err = s.client.Collection(store.ProductsCollection).Add(ctx, toProductDocument(product))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert product: %w", err)
	}

	return ref.ID, nil
}

func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collection(store.UsersCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore unreachable: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ store.Store = (*Store)(nil)
