package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/internal/store/memory"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestLocal() *Local {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	local := NewLocal(nil, logger)
	local.cost = bcrypt.MinCost
	return local
}

func TestLocalCreateUser(t *testing.T) {
	local := newTestLocal()

	uid, err := local.CreateUser(context.Background(), "Ada@Example.com", "s3cret", "Ada")
	require.NoError(t, err)
	assert.Len(t, uid, 32)

	cred, ok := local.credentials["ada@example.com"]
	require.True(t, ok, "emails are keyed case-insensitively")
	assert.Equal(t, uid, cred.uid)
	assert.NoError(t, bcrypt.CompareHashAndPassword(cred.passwordHash, []byte("s3cret")))
	assert.Error(t, bcrypt.CompareHashAndPassword(cred.passwordHash, []byte("wrong")))
}

func TestLocalRejectsDuplicateEmail(t *testing.T) {
	local := newTestLocal()

	_, err := local.CreateUser(context.Background(), "ada@example.com", "one", "Ada")
	require.NoError(t, err)

	_, err = local.CreateUser(context.Background(), " ADA@example.com", "two", "Ada again")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLocalIssuesDistinctUIDs(t *testing.T) {
	local := newTestLocal()

	first, err := local.CreateUser(context.Background(), "a@example.com", "pw", "A")
	require.NoError(t, err)
	second, err := local.CreateUser(context.Background(), "b@example.com", "pw", "B")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

type failingIndex struct{}

func (failingIndex) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestLocalRejectsEmailAlreadyPersisted(t *testing.T) {
	db := memory.NewStore()
	require.NoError(t, db.PutUser(context.Background(), &models.User{ID: "u1", Email: "ada@example.com"}))

	// a fresh Local has no credentials, as after a restart
	local := newTestLocal()
	local.users = db

	_, err := local.CreateUser(context.Background(), "Ada@Example.com", "secret", "Ada")
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Empty(t, local.credentials)
}

func TestLocalIndexFailure(t *testing.T) {
	local := newTestLocal()
	local.users = failingIndex{}

	_, err := local.CreateUser(context.Background(), "ada@example.com", "secret", "Ada")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}
