package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Local issues identities in process. It backs the non-Firebase stores, where
// no hosted auth service exists. Credentials do not survive a restart, so
// email uniqueness is also checked against the persisted users when an index
// is given.
type Local struct {
	mu          sync.Mutex
	users       store.EmailIndex
	credentials map[string]credential
	cost        int
	logger      *logrus.Logger
}

type credential struct {
	uid          string
	passwordHash []byte
}

func NewLocal(users store.EmailIndex, logger *logrus.Logger) *Local {
	return &Local{
		users:       users,
		credentials: make(map[string]credential),
		cost:        bcrypt.DefaultCost,
		logger:      logger,
	}
}

func (l *Local) CreateUser(ctx context.Context, email, password, name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.credentials[key]; exists {
		return "", fmt.Errorf("%w: %s", ErrEmailExists, email)
	}
	if l.users != nil {
		_, err := l.users.UserByEmail(ctx, strings.TrimSpace(email))
		if err == nil {
			return "", fmt.Errorf("%w: %s", ErrEmailExists, email)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("failed to check email: %w", err)
		}
	}

	uid := strings.ReplaceAll(uuid.New().String(), "-", "")
	l.credentials[key] = credential{uid: uid, passwordHash: hash}

	l.logger.WithField("uid", uid).Info("Local user created")
	return uid, nil
}

var _ Provider = (*Local)(nil)
