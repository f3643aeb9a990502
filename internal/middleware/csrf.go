package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/skumar/authdemo/internal/auth"
)

const csrfField = "csrf_token"
const csrfHeader = "X-CSRF-Token"

// VerifyCSRF rejects state-changing requests whose submitted token does
// not match the one bound to the session. It runs before any handler
// logic and fails with a deliberately uninformative 403. On success the
// session rides the context so handlers don't look it up again.
func VerifyCSRF(sessions auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil {
				forbid(w)
				return
			}
			sess, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if sess == nil || sess.CSRFToken == "" {
				forbid(w)
				return
			}

			if err := r.ParseForm(); err != nil {
				forbid(w)
				return
			}
			received := r.PostFormValue(csrfField)
			if received == "" {
				received = r.Header.Get(csrfHeader)
			}
			if subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(received)) != 1 {
				forbid(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}

func forbid(w http.ResponseWriter) {
	http.Error(w, "request could not be processed", http.StatusForbidden)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
