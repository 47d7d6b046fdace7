package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(128) PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		price NUMERIC NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		cart JSONB NOT NULL DEFAULT '[]',
		total NUMERIC NOT NULL,
		status VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(lower(email))`,
}

type Store struct {
	db      *sql.DB
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

// Open connects, waits for the database to accept connections and creates
// the tables if they do not exist.
func Open(ctx context.Context, dsn string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := waitForDatabase(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", describe(err))
		}
	}

	return &Store{db: db, breaker: breaker, logger: logger}, nil
}

func waitForDatabase(ctx context.Context, db *sql.DB, logger *logrus.Logger) error {
	var err error
	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Info("Database connection established")
			return nil
		}
		logger.WithError(err).Info("Waiting for database...")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("database not reachable: %w", err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	found := true

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx,
			`SELECT id, name, email, created_at FROM users WHERE id = $1`, id,
		).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", describe(err))
	}
	if !found {
		return nil, store.ErrNotFound
	}

	return user, nil
}

func (s *Store) PutUser(ctx context.Context, user *models.User) error {
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
			user.ID, user.Name, user.Email)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", describe(err))
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	found := true

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx,
			`SELECT id, name, email, created_at FROM users WHERE lower(email) = lower($1) LIMIT 1`, email,
		).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", describe(err))
	}
	if !found {
		return nil, store.ErrNotFound
	}

	return user, nil
}

func (s *Store) AddOrder(ctx context.Context, order *models.Order) (string, error) {
	cart, err := encodeCart(order.Cart)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	err = s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, cart, total, status)
			VALUES ($1, $2, $3, $4, $5)`,
			id, order.UserID, cart, order.Total, string(order.Status))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert order: %w", describe(err))
	}

	return id, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, user_id, cart, total, status, created_at
			FROM orders WHERE user_id = $1 ORDER BY created_at`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var order models.Order
			var cart []byte
			var status string
			if err := rows.Scan(&order.ID, &order.UserID, &cart, &order.Total, &status, &order.CreatedAt); err != nil {
				return err
			}
			if order.Cart, err = decodeCart(cart); err != nil {
				return circuitbreaker.Ignore(err)
			}
			order.Status = models.OrderStatus(status)
			orders = append(orders, order)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", describe(err))
	}

	return orders, nil
}

func (s *Store) AddProduct(ctx context.Context, product *models.Product) (string, error) {
	id := uuid.New().String()
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, title, price, description, image_url)
			VALUES ($1, $2, $3, $4, $5)`,
			id, product.Title, product.Price, product.Description, product.ImageURL)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert product: %w", describe(err))
	}

	return id, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeCart(cart []any) ([]byte, error) {
	if cart == nil {
		cart = []any{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	return data, nil
}

func decodeCart(data []byte) ([]any, error) {
	cart := []any{}
	if len(data) == 0 {
		return cart, nil
	}
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return cart, nil
}

// describe adds the SQLSTATE to driver errors so logs show the cause.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (sqlstate %s)", err, pqErr.Code)
	}
	return err
}

var _ store.Store = (*Store)(nil)
