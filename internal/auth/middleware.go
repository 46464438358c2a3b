package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "fluxmap/pkg/domainerrors"
	"fluxmap/pkg/httputil"
)

// Guard authenticates admin requests. A request passes with a valid admin
// bearer token, or, where API keys are accepted, an X-API-Key matching one
// of the configured bcrypt hashes.
type Guard struct {
	manager   *Manager
	keyHashes []string
	log       *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardLogger overrides the default logger.
func WithGuardLogger(log *slog.Logger) GuardOption {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGuard builds a guard. Either argument may be zero-valued; a guard with
// no manager and no hashes rejects everything.
func NewGuard(manager *Manager, keyHashes []string, opts ...GuardOption) *Guard {
	g := &Guard{manager: manager, keyHashes: keyHashes, log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAdmin admits only valid admin bearer tokens.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.checkBearer(r) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminOrKey admits admin bearer tokens or a configured API key; used
// on the upload endpoint so ingestion automation does not need token minting.
func (g *Guard) RequireAdminOrKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.checkBearer(r) || g.checkAPIKey(r) {
			next.ServeHTTP(w, r)
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token or api key required"))
	})
}

func (g *Guard) checkBearer(r *http.Request) bool {
	if g.manager == nil {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	claims, err := g.manager.Validate(token)
	if err != nil {
		g.log.Debug("bearer rejected", "error", err)
		return false
	}
	return claims.Role == RoleAdmin
}

func (g *Guard) checkAPIKey(r *http.Request) bool {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return false
	}
	for _, hash := range g.keyHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return true
		}
	}
	g.log.Debug("api key rejected")
	return false
}
