package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-admission/internal/config"
	"ms-admission/internal/logger"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware verifies bearer tokens and enforces role checks. With
// OIDC_ISSUER set it verifies against the provider; otherwise it falls back
// to the shared HMAC secret. Verified identities are cached in Redis for a
// short TTL keyed by token digest.
type Middleware struct {
	cfg      config.AuthConfig
	cache    *TokenCache
	verifier *oidc.IDTokenVerifier
	logger   *logger.Logger
}

func NewMiddleware(cfg config.AuthConfig, cache *TokenCache, log *logger.Logger) (*Middleware, error) {
	m := &Middleware{cfg: cfg, cache: cache, logger: log}

	if cfg.OIDCIssuer != "" {
		provider, err := oidc.NewProvider(context.Background(), cfg.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		m.verifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
		if log != nil {
			log.Info("AUTH", fmt.Sprintf("Verifying tokens against OIDC issuer %s", cfg.OIDCIssuer))
		}
	}

	return m, nil
}

// RequireRoles authenticates the request and rejects callers whose role is
// not in the allow list.
func (m *Middleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			id, err := m.identity(r.Context(), rawToken)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			if len(allowed) > 0 && !allowed[id.Role] {
				http.Error(w, "insufficient role", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *Middleware) identity(ctx context.Context, rawToken string) (*Identity, error) {
	if id, ok := m.cache.Get(ctx, rawToken); ok {
		return id, nil
	}

	var id *Identity
	var err error

	if m.verifier != nil {
		idToken, verr := m.verifier.Verify(ctx, rawToken)
		if verr != nil {
			return nil, verr
		}
		var claims map[string]interface{}
		if cerr := idToken.Claims(&claims); cerr != nil {
			return nil, cerr
		}
		id, err = identityFromClaims(claims)
	} else {
		id, err = ParseIdentity(rawToken, m.cfg.JWTSecret)
	}
	if err != nil {
		return nil, err
	}

	m.cache.Put(ctx, rawToken, id)
	return id, nil
}

// FromContext returns the verified caller identity placed by RequireRoles.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}
