package kartexauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginPlaintextPassword(t *testing.T) {
	a := New(Config{
		Users:     []User{{Username: "admin", Password: "hunter2", Role: "admin"}},
		JWTSecret: "test-secret",
	})

	token, user, err := a.Login("admin", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "admin", user.Role)

	_, _, err = a.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginBcryptPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	require.NoError(t, err)

	a := New(Config{
		Users:     []User{{Username: "ops", Password: string(hash), Role: "viewer"}},
		JWTSecret: "test-secret",
	})

	token, _, err := a.Login("ops", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = a.Login("ops", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateAPIKey(t *testing.T) {
	a := New(Config{APIKeys: []string{"key-one"}})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("Authorization", "Bearer key-one")

	principal, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.True(t, principal.APIKey)
}

func TestAuthenticateJWT(t *testing.T) {
	a := New(Config{
		Users:     []User{{Username: "admin", Password: "pw", Role: "admin"}},
		JWTSecret: "test-secret",
		TokenTTL:  time.Minute,
	})
	token, _, err := a.Login("admin", "pw")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	principal, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "admin", principal.Username)
	assert.Equal(t, "admin", principal.Role)
}

func TestAuthenticateRejectsMissingOrBadHeader(t *testing.T) {
	a := New(Config{APIKeys: []string{"key-one"}})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	_, err := a.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthorized)

	req2 := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req2.Header.Set("Authorization", "Bearer not-a-real-key")
	_, err = a.Authenticate(req2)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMiddlewareStashesPrincipal(t *testing.T) {
	a := New(Config{APIKeys: []string{"key-one"}})

	var seen Principal
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("Authorization", "Bearer key-one")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen.APIKey)
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	a := New(Config{APIKeys: []string{"key-one"}})
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
