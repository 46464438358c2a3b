package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fluxmap/pkg/testutil"
)

const secret = "test-secret-not-for-production"

func fixedNow() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(secret, WithManagerClock(fixedNow))
	require.NoError(t, err)
	return m
}

func TestGenerateValidateRoundTrip(t *testing.T) {
	m := newManager(t)

	token, err := m.Generate("ops", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "fluxmap", claims.Issuer)
}

func TestValidateExpired(t *testing.T) {
	m, err := NewManager(secret, WithManagerClock(fixedNow))
	require.NoError(t, err)
	token, err := m.Generate("ops", RoleAdmin, time.Minute)
	require.NoError(t, err)

	later, err := NewManager(secret, WithManagerClock(func() time.Time {
		return fixedNow().Add(2 * time.Minute)
	}))
	require.NoError(t, err)

	_, err = later.Validate(token)
	assert.ErrorContains(t, err, "expired")
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := newManager(t).Generate("ops", RoleAdmin, time.Hour)
	require.NoError(t, err)

	other, err := NewManager("a-different-secret", WithManagerClock(fixedNow))
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorContains(t, err, "invalid token")
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("")
	assert.Error(t, err)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAdmin(t *testing.T) {
	m := newManager(t)
	guard := NewGuard(m, nil, WithGuardLogger(testutil.Logger()))
	handler := guard.RequireAdmin(okHandler())

	t.Run("valid admin token", func(t *testing.T) {
		token, err := m.Generate("ops", RoleAdmin, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/system/reset", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("non-admin role", func(t *testing.T) {
		token, err := m.Generate("viewer", "viewer", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/system/reset", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/system/reset", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequireAdminOrKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("upload-key"), bcrypt.MinCost)
	require.NoError(t, err)

	guard := NewGuard(nil, []string{string(hash)}, WithGuardLogger(testutil.Logger()))
	handler := guard.RequireAdminOrKey(okHandler())

	t.Run("matching api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/data/upload", nil)
		req.Header.Set("X-API-Key", "upload-key")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("wrong api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/data/upload", nil)
		req.Header.Set("X-API-Key", "not-the-key")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("no credentials at all", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/data/upload", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
