package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	orders   *mongo.Collection
	products *mongo.Collection
	breaker  *circuitbreaker.CircuitBreaker
	logger   *logrus.Logger
}

func NewStore(uri, dbName string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// embedded cart line items decode as maps so they serialize back to JSON objects
	clientOpts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	orders := db.Collection(store.OrdersCollection)

	_, err = orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	logger.WithField("database", dbName).Info("MongoDB store ready")

	return &Store{
		client:   client,
		users:    db.Collection(store.UsersCollection),
		orders:   orders,
		products: db.Collection(store.ProductsCollection),
		breaker:  breaker,
		logger:   logger,
	}, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var doc UserDocument
	found := true

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}

	return toUserEntity(&doc), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc UserDocument
	found := true

	// strength 2 compares case-insensitively
	opts := options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		err := s.users.FindOne(ctx, bson.M{"email": email}, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}

	return toUserEntity(&doc), nil
}

func (s *Store) PutUser(ctx context.Context, user *models.User) error {
	doc := UserDocument{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: time.Now().UTC(),
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, doc, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (s *Store) AddOrder(ctx context.Context, order *models.Order) (string, error) {
	doc := toOrderDocument(order, time.Now().UTC())

	var result *mongo.InsertOneResult
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.orders.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}

	return objectIDHex(result.InsertedID), nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var docs []OrderDocument

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		cursor, err := s.orders.Find(ctx,
			bson.M{"userId": userID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
		)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}

	orders := make([]models.Order, 0, len(docs))
	for i := range docs {
		orders = append(orders, toOrderEntity(&docs[i]))
	}
	return orders, nil
}

func (s *Store) AddProduct(ctx context.Context, product *models.Product) (string, error) {
	doc := toProductDocument(product, time.Now().UTC())

	var result *mongo.InsertOneResult
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.products.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert product: %w", err)
	}

	return objectIDHex(result.InsertedID), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func objectIDHex(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

var _ store.Store = (*Store)(nil)
