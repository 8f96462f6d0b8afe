package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/store"
)

// RequireAuth validates the bearer token, checks the backing session row, and
// populates AuthContext with the account's current membership. The membership
// is loaded per request so a removal takes effect immediately, not at token
// expiry.
func RequireAuth(secret []byte, sessionStore *store.SessionStore, accountStore *store.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				unauthorized(w)
				return
			}

			claims, err := auth.ParseToken(secret, strings.TrimPrefix(header, prefix))
			if err != nil {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetValid(claims.SessionID)
			if err != nil || sess == nil || sess.AccountID != claims.AccountID {
				unauthorized(w)
				return
			}

			account, err := accountStore.GetByID(claims.AccountID)
			if err != nil || account == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				AccountID:   account.ID,
				Username:    account.Username,
				ApartmentID: account.ApartmentID,
				SessionID:   sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
}
