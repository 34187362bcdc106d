package main

import (
	"context"
	"sync"
	"testing"

	"github.com/certops/certbot-ui/internal/store"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type seedStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newSeedStore() *seedStore {
	return &seedStore{users: make(map[string]*models.User)}
}

func (s *seedStore) Ping(context.Context) error { return nil }

func (s *seedStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Username]; exists {
		return store.ErrDuplicateKey
	}
	s.users[user.Username] = user
	return nil
}

func (s *seedStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (s *seedStore) UpdateUserPassword(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (s *seedStore) CountUsers(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

var _ store.Store = (*seedStore)(nil)

func TestSeedDefaultAdmin_EmptyStore(t *testing.T) {
	s := newSeedStore()

	require.NoError(t, seedDefaultAdmin(context.Background(), s, "development"))

	admin, err := s.GetUserByUsername(context.Background(), defaultAdminUsername)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(admin.PasswordHash), []byte(defaultAdminPassword)))
	assert.False(t, admin.CreatedAt.IsZero())
	assert.False(t, admin.UpdatedAt.IsZero())
}

func TestSeedDefaultAdmin_SkipsWhenUsersExist(t *testing.T) {
	s := newSeedStore()
	require.NoError(t, s.CreateUser(context.Background(), &models.User{
		ID: uuid.New(), Username: "existing", PasswordHash: "x",
	}))

	require.NoError(t, seedDefaultAdmin(context.Background(), s, "development"))

	_, err := s.GetUserByUsername(context.Background(), defaultAdminUsername)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSeedDefaultAdmin_SkipsInProduction(t *testing.T) {
	s := newSeedStore()

	require.NoError(t, seedDefaultAdmin(context.Background(), s, "production"))

	count, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSeedDefaultAdmin_ToleratesSeedRace(t *testing.T) {
	s := newSeedStore()

	require.NoError(t, seedDefaultAdmin(context.Background(), s, "development"))
	// A second instance observing an empty table before the first commit
	// hits the unique constraint; that must not fail startup.
	require.NoError(t, s.CreateUser(context.Background(), &models.User{
		ID: uuid.New(), Username: "probe", PasswordHash: "x",
	}))
	require.NoError(t, seedDefaultAdmin(context.Background(), s, "development"))
}
