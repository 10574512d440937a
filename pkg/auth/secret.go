package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	apphttp "github.com/atareh/lightvision/pkg/app/http"
)

// Header names carrying the shared secrets.
const (
	AdminSecretHeader = "X-Admin-Secret"
	SyncSecretHeader  = "X-Sync-Secret"
)

// SecretVerifier checks a presented credential against a configured
// shared secret in constant time.
type SecretVerifier struct {
	secret []byte
}

// NewSecretVerifier creates a verifier for one shared secret
func NewSecretVerifier(secret string) *SecretVerifier {
	return &SecretVerifier{secret: []byte(secret)}
}

// Verify reports whether the presented value matches the secret. The
// comparison is constant time and an empty configured secret never
// matches.
func (v *SecretVerifier) Verify(presented string) bool {
	if len(v.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(v.secret, []byte(presented)) == 1
}

// RequireSecret is middleware rejecting requests whose named header does
// not carry the expected secret. A missing or wrong secret yields a 401
// before the wrapped handler runs, so unauthorized calls have no side
// effects. Sync triggers may alternatively present the secret as a
// bearer token.
func RequireSecret(verifier *SecretVerifier, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(header)
			if presented == "" {
				presented = bearerToken(r)
			}
			if !verifier.Verify(presented) {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "invalid or missing secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	value := r.Header.Get("Authorization")
	if strings.HasPrefix(value, "Bearer ") {
		return strings.TrimPrefix(value, "Bearer ")
	}
	return ""
}
