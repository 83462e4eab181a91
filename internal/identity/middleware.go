package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/meridian-social/meridian-users/internal/platform/httpx"
	"github.com/meridian-social/meridian-users/internal/shared"
)

// Middleware authenticates requests via the Authorization header and injects
// the resolved caller into the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		profile, err := r.Resolve(req.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		ctx := shared.ContextWithCaller(req.Context(), shared.Caller{
			ID:       profile.ID,
			Username: profile.Username,
		})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func bearerToken(req *http.Request) (string, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", shared.ErrUnauthorized)
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("malformed authorization header: %w", shared.ErrUnauthorized)
	}
	return token, nil
}
