package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/util/logger"
)

// SecretHeader carries the caller-supplied shared secret.
const SecretHeader = "X-Door-Secret"

// SessionVerifier validates an operator session token. A valid session is an
// accepted alternative to the header secret.
type SessionVerifier interface {
	Verify(token string) (operatorID string, err error)
}

// SecretPolicy is set once at construction. AllowUnconfigured is the explicit
// development escape hatch: it must be computed by the composition root, the
// guard itself never reads the environment.
type SecretPolicy struct {
	Secret            string
	AllowUnconfigured bool
}

type SecretGuard struct {
	policy   SecretPolicy
	sessions SessionVerifier
}

func NewSecretGuard(policy SecretPolicy, sessions SessionVerifier) *SecretGuard {
	return &SecretGuard{policy: policy, sessions: sessions}
}

func (g *SecretGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.sessions != nil {
			if token := bearerToken(r); token != "" {
				if operatorID, err := g.sessions.Verify(token); err == nil {
					logger.Debug("Secret guard: operator session %s accepted", operatorID)
					next.ServeHTTP(w, r)
					return
				}
				// An invalid token falls through to the header secret so an
				// expired session with a correct secret still works.
			}
		}

		if g.policy.Secret == "" {
			if g.policy.AllowUnconfigured {
				logger.Warn("Secret guard: no door secret configured, allowing %s (development mode)", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}
			logger.Error("Secret guard: no door secret configured, refusing %s", r.RemoteAddr)
			writeError(w, http.StatusServiceUnavailable, models.CodeServiceUnavailable,
				"door secret is not configured")
			return
		}

		supplied := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(g.policy.Secret)) != 1 {
			logger.Warn("Secret guard rejected %s for %s %s", r.RemoteAddr, r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, models.CodeUnauthorized,
				"missing or invalid door secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
