package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

type ctxKey int

const userKey ctxKey = iota

func withUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user placed on the context by Authenticate.
func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey).(domain.User)
	return u, ok
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate verifies the session token and loads the matching user.
func Authenticate(sessions SessionVerifier, users Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				writeFail(w, http.StatusUnauthorized, "not authorized")
				return
			}
			id, err := sessions.VerifySession(r.Context(), tok)
			if err != nil {
				log.Debug().Err(err).Msg("session rejected")
				writeFail(w, http.StatusUnauthorized, "not authorized")
				return
			}
			u, err := users.Resolve(r.Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeFail(w, http.StatusUnauthorized, "user not found")
					return
				}
				writeErr(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
		})
	}
}

// RequireOwner rejects users that have not registered a hotel.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok || u.Role != domain.RoleHotelOwner {
			writeFail(w, http.StatusForbidden, "hotel owner access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
