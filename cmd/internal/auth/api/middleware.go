package authapi

import (
	"context"
	"net/http"
	"strings"

	"authcore/cmd/internal/auth/codec"
	"authcore/cmd/internal/auth/session"
)

type claimsKey struct{}

// ClaimsFrom returns the access-token claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (codec.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(codec.Claims)
	return c, ok
}

// RequireAuth rejects requests without a valid bearer access token and
// stores the verified claims on the request context.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := h.sessions.Authenticate(r.Context(), tok)
		if err != nil {
			if session.KindOf(err) != session.KindAuthentication {
				h.log.Error("auth.bearer.fail", "err", err)
				writeError(w, http.StatusInternalServerError, "server_error", "internal error")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}

// RequireAdmin is RequireAuth plus an admin claim check.
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		c, _ := ClaimsFrom(r.Context())
		if !c.IsAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin required")
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
