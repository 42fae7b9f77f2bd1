package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/contextkeys"
	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
)

// Authenticator establishes the request identity before routing. It is
// strict: a present-but-invalid token is rejected with 401 rather than
// downgraded to anonymous.
type Authenticator struct {
	codec       *auth.TokenCodec
	revocations auth.RevocationStore
	users       auth.UserStore
	logger      *observability.Logger

	publicPaths    map[string]struct{}
	publicPrefixes []string
}

// NewAuthenticator creates the middleware. publicPaths are matched exactly;
// publicPrefixes by prefix. Requests to either skip token handling
// entirely.
func NewAuthenticator(codec *auth.TokenCodec, revocations auth.RevocationStore, users auth.UserStore, logger *observability.Logger, publicPaths []string, publicPrefixes []string) *Authenticator {
	exact := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		exact[p] = struct{}{}
	}
	return &Authenticator{
		codec:          codec,
		revocations:    revocations,
		users:          users,
		logger:         logger,
		publicPaths:    exact,
		publicPrefixes: publicPrefixes,
	}
}

func (a *Authenticator) isPublicPath(path string) bool {
	if _, ok := a.publicPaths[path]; ok {
		return true
	}
	for _, prefix := range a.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractToken pulls the bearer token from the Authorization header. A
// missing header or a malformed scheme both mean "no token presented".
func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Handler wraps next with per-request authentication
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, present := extractToken(r)
		if !present {
			// no identity attached; the policy layer decides whether
			// that is acceptable for the target route
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		log := a.logger.WithContext(ctx)

		// revocation is checked before any claim in the token is trusted
		revoked, err := a.revocations.IsRevoked(ctx, token)
		if err != nil {
			log.WithError(err).Error("revocation check failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if revoked {
			httputil.WriteUnauthorized(w, "token has been invalidated")
			return
		}

		claims, err := a.codec.Parse(token)
		if err != nil {
			log.WithError(err).Debug("token validation failed")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		validAfter, err := a.revocations.ValidAfter(ctx, claims.Subject)
		if err != nil {
			log.WithError(err).Error("valid-after check failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if !validAfter.IsZero() && claims.IssuedAt.Before(validAfter) {
			httputil.WriteUnauthorized(w, "token has been invalidated")
			return
		}

		user, err := a.users.GetByUsername(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				// subject vanished since issuance; proceed anonymous and
				// let the policy layer refuse protected routes
				next.ServeHTTP(w, r)
				return
			}
			log.WithError(err).Error("principal load failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if !user.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		principal := &auth.Principal{
			UserID:   user.ID,
			Username: user.Username,
			Role:     user.Role,
			Enabled:  user.IsActive,
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithPrincipal(ctx, principal)))
	})
}

// GetPrincipal returns the authenticated principal attached to the request,
// or nil when the request is anonymous
func GetPrincipal(r *http.Request) *auth.Principal {
	v := r.Context().Value(contextkeys.PrincipalKey)
	if v == nil {
		return nil
	}
	principal, ok := v.(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}
