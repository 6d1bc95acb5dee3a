package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/model"
)

// TokenVerifier resolves a bearer token to a user ID.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserLookup loads the current state of a user.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth verifies the bearer token and loads the user into AuthContext.
// The token comes from the Authorization header, or from the token query
// parameter for clients that cannot set headers (browser websockets).
func RequireAuth(tokens TokenVerifier, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "No token provided, authorization denied.")
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				unauthorized(w, "Token is invalid or expired.")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				logger.Error("load user for request", "user_id", userID, "error", err)
				writeError(w, http.StatusInternalServerError, "Server error, please try again.")
				return
			}
			if user == nil {
				unauthorized(w, "User not found, authorization denied.")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{User: *user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
