package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/session"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

type contextKey string

const (
	UserContextKey    contextKey = "user"
	SessionContextKey contextKey = "session"
)

// sessionCookie is the fallback token carrier for browser clients; API
// clients send a bearer token.
const sessionCookie = "fc_session"

// AuthMiddleware resolves session tokens into users for protected endpoints.
type AuthMiddleware struct {
	store    store.DataStore
	sessions session.Store
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(ds store.DataStore, sessions session.Store) *AuthMiddleware {
	return &AuthMiddleware{store: ds, sessions: sessions}
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a live session and attaches the
// session and user to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sess, err := m.sessions.Get(r.Context(), token)
		if err != nil {
			jsonError(w, http.StatusServiceUnavailable, "session lookup failed")
			return
		}
		if sess == nil {
			jsonError(w, http.StatusUnauthorized, "session expired or invalid")
			return
		}

		user, err := m.store.GetUserByID(r.Context(), sess.UserID)
		if err != nil {
			jsonError(w, http.StatusServiceUnavailable, "user lookup failed")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, sess)
		ctx = context.WithValue(ctx, UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated users whose role does not match.
func (m *AuthMiddleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			if user == nil {
				jsonError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if user.Role != role {
				jsonError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request
// context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext retrieves the session from the request context.
func GetSessionFromContext(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(SessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}
