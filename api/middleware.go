package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"reelparty/internal/auth"
	"reelparty/services/groups"
	"reelparty/services/sessions"
)

// Re-export from auth package for handler convenience
var (
	GetAccountID = auth.GetAccountID
	IsAdmin      = auth.IsAdmin
)

// AccountAuthMiddleware creates middleware that validates session tokens.
// Tokens can be provided via Authorization header or ?token= query param.
func AccountAuthMiddleware(sessionsSvc *sessions.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if sessionsSvc == nil {
				writeAuthError(w, http.StatusInternalServerError, "session service unavailable")
				return
			}

			session, err := sessionsSvc.Validate(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			// Valid session - inject account context
			ctx := context.WithValue(r.Context(), auth.ContextKeyAccountID, session.AccountID)
			ctx = context.WithValue(ctx, auth.ContextKeyIsAdmin, session.IsAdmin)
			ctx = context.WithValue(ctx, auth.ContextKeySession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnlyMiddleware creates middleware that only allows admin accounts.
func AdminOnlyMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if !IsAdmin(r) {
				writeAuthError(w, http.StatusForbidden, "admin account required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GroupMemberMiddleware verifies the authenticated account belongs to the
// group named in the route. Admin accounts can reach any group; everyone
// else gets a 404 rather than a 403, so group IDs stay unguessable.
func GroupMemberMiddleware(groupsSvc *groups.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if IsAdmin(r) {
				next.ServeHTTP(w, r)
				return
			}

			groupID := mux.Vars(r)["groupID"]
			if groupID == "" {
				next.ServeHTTP(w, r)
				return
			}

			accountID := GetAccountID(r)
			if _, err := groupsSvc.MemberFor(groupID, accountID); err != nil {
				writeAuthError(w, http.StatusNotFound, "group not found")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// extractToken extracts the session token from headers or query param.
// Priority: Authorization header > ?token= query param
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	// Fall back to query parameter for links that cannot set headers
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	return ""
}
