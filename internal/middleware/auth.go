package middleware

import (
	"context"
	"net/http"

	"github.com/skumar/authdemo/internal/auth"
	"github.com/skumar/authdemo/internal/models"
)

// Decision is the tagged result of a guard check: either allow with the
// session attached, or deny with a reason.
type Decision struct {
	Allow   bool
	Reason  string
	Session *models.Session
}

// CheckSession resolves a session cookie value to an authenticated
// session. Reasons are for logs only; they must never leak to responses.
func CheckSession(ctx context.Context, sessions auth.SessionStore, token string) (Decision, error) {
	if token == "" {
		return Decision{Reason: "no session cookie"}, nil
	}
	sess, err := sessions.Get(ctx, token)
	if err != nil {
		return Decision{}, err
	}
	if sess == nil {
		return Decision{Reason: "session missing or expired"}, nil
	}
	if !sess.Authenticated() {
		return Decision{Reason: "session not logged in", Session: sess}, nil
	}
	return Decision{Allow: true, Session: sess}, nil
}

// RequireAuth guards protected routes: requests without a valid logged-in
// session are redirected to the login page, never shown an error page.
func RequireAuth(sessions auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
				token = cookie.Value
			}

			d, err := CheckSession(r.Context(), sessions, token)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !d.Allow {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), d.Session)))
		})
	}
}
