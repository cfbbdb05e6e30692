package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/whodeedit/whodeedit/internal/auth"
	"github.com/whodeedit/whodeedit/internal/store"
)

// RequireAuth validates the Authorization bearer token, re-fetches the
// user record and populates AuthContext. The token payload carries only
// the user id, so role and ban state are always current.
func RequireAuth(users *store.UserStore, tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "authentication token required")
				return
			}

			userID, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized(w, "token expired")
					return
				}
				unauthorized(w, "invalid token")
				return
			}

			user, err := users.GetByID(userID)
			if err != nil || user == nil {
				unauthorized(w, "user not found")
				return
			}

			if user.IsBanned {
				reason := user.BannedReason
				if reason == "" {
					reason = "violation of terms"
				}
				forbidden(w, "your account has been suspended: "+reason)
				return
			}

			_ = users.TouchLastLogin(user.ID)

			ac := auth.AuthContext{
				UserID:          user.ID,
				WalletAddress:   user.WalletAddress,
				Role:            user.Role,
				WorldIDVerified: user.WorldIDVerified,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user holds an admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			forbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireWorldID checks that the authenticated user has a World ID
// verification on record.
func RequireWorldID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsWorldIDVerified(r.Context()) {
			forbidden(w, "World ID verification required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func forbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
