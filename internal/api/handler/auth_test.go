package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/certops/certbot-ui/internal/api/handler"
	"github.com/certops/certbot-ui/internal/api/middleware"
	"github.com/certops/certbot-ui/internal/auth"
	"github.com/certops/certbot-ui/internal/store"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handler-test-secret-at-least-32-chars!!"

// fakeStore is an in-memory store.Store for handler tests.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Username]; exists {
		return store.ErrDuplicateKey
	}
	f.users[user.Username] = user
	return nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			user.PasswordHash = hash
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CountUsers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeStore) addUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Username: username, PasswordHash: string(hash)}
	require.NoError(t, f.CreateUser(context.Background(), user))
	return user
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newAuthHandler(fs *fakeStore) *handler.AuthHandler {
	return handler.NewAuthHandler(fs, auth.NewTokenManager(testSecret, time.Hour))
}

func TestLogin_Success(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser(t, "alice", "correct-horse-battery")
	h := newAuthHandler(fs)

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "correct-horse-battery",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])

	respUser := data["user"].(map[string]any)
	assert.Equal(t, user.ID.String(), respUser["id"])
	assert.Equal(t, "alice", respUser["username"])
	_, leaked := respUser["password_hash"]
	assert.False(t, leaked)
}

func TestLogin_WrongPassword(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(t, "alice", "correct-horse-battery")
	h := newAuthHandler(fs)

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_CREDENTIALS", errObj["code"])
}

func TestLogin_UnknownUserSameError(t *testing.T) {
	h := newAuthHandler(newFakeStore())

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"username": "nobody",
		"password": "whatever-pass",
	}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_CREDENTIALS", errObj["code"])
}

func TestRegister_Success(t *testing.T) {
	fs := newFakeStore()
	h := newAuthHandler(fs)

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"username": "bob",
		"password": "a-long-password",
	}))

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "bob", data["username"])

	stored, err := fs.GetUserByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("a-long-password")))

	// The store persists whatever the handler sets; a zero time here would be
	// written to the database as-is.
	assert.False(t, stored.CreatedAt.IsZero())
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestRegister_DuplicateUsername(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(t, "bob", "a-long-password")
	h := newAuthHandler(fs)

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"username": "bob",
		"password": "a-long-password",
	}))

	assert.Equal(t, http.StatusConflict, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "USERNAME_TAKEN", errObj["code"])
}

func TestRegister_Validation(t *testing.T) {
	h := newAuthHandler(newFakeStore())

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "a-long-password"},
		{"short password", "carol", "short"},
		{"both empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Register(w, jsonRequest(t, "POST", "/api/auth/register", map[string]string{
				"username": tt.username,
				"password": tt.password,
			}))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			errObj := decodeBody(t, w)["error"].(map[string]any)
			assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
		})
	}
}

func TestChangePassword(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser(t, "alice", "old-password-123")
	h := newAuthHandler(fs)

	req := jsonRequest(t, "POST", "/api/auth/change-password", map[string]string{
		"current_password": "old-password-123",
		"new_password":     "new-password-456",
	})
	req = req.WithContext(middleware.SetUser(req.Context(), user.ID.String(), "alice"))

	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	stored, err := fs.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-password-456")))
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser(t, "alice", "old-password-123")
	h := newAuthHandler(fs)

	req := jsonRequest(t, "POST", "/api/auth/change-password", map[string]string{
		"current_password": "not-the-password",
		"new_password":     "new-password-456",
	})
	req = req.WithContext(middleware.SetUser(req.Context(), user.ID.String(), "alice"))

	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
