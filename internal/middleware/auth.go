package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/worklog/internal/domain"
)

type contextKey string

const (
	// ContextKeyUserID is the key for storing the authenticated user ID in request context.
	ContextKeyUserID contextKey = "user_id"
)

// UserLookup finds users by token.
type UserLookup interface {
	GetByToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware handles token authentication.
type AuthMiddleware struct {
	users UserLookup
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		users: users,
	}
}

// tokenFrom reads a Bearer token, falling back to the token query parameter
// used by websocket clients.
func tokenFrom(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}
	if parts[1] == "" {
		return "", errors.New("missing token")
	}
	return parts[1], nil
}

// authenticate resolves the request's user. The returned status is only
// meaningful when err is not nil.
func (m *AuthMiddleware) authenticate(r *http.Request) (*domain.User, int, error) {
	token, err := tokenFrom(r)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}

	user, err := m.users.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, http.StatusUnauthorized, domain.ErrInvalidToken
		}
		slog.Error("failed to look up token", "error", err)
		return nil, http.StatusInternalServerError, errors.New("internal server error")
	}

	if !user.IsActive {
		return nil, http.StatusUnauthorized, domain.ErrUserInactive
	}
	return user, http.StatusOK, nil
}

// Authenticate validates the token and adds the user ID to request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, status, err := m.authenticate(r)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), user.ID)))
	})
}

// Resolve authenticates r for handlers that cannot be wrapped, such as the
// websocket upgrade.
func (m *AuthMiddleware) Resolve(r *http.Request) (int64, bool) {
	user, _, err := m.authenticate(r)
	if err != nil {
		return 0, false
	}
	return user.ID, true
}

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext retrieves the authenticated user ID from request context.
func UserIDFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(ContextKeyUserID).(int64)
	if !ok || id == 0 {
		return 0, domain.ErrInvalidToken
	}
	return id, nil
}
