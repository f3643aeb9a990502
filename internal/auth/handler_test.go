package auth_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skumar/authdemo/internal/auth"
	"github.com/skumar/authdemo/internal/config"
	"github.com/skumar/authdemo/internal/middleware"
	"github.com/skumar/authdemo/internal/store"
	"github.com/skumar/authdemo/internal/web"
)

var csrfRe = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	users := store.NewMemoryStore()
	sessions := auth.NewMemorySessions()
	limiter := auth.NewMemoryLimiter()
	pages := web.NewPages()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := auth.NewHandler(users, sessions, limiter, pages, logger, time.Hour, false)

	cfg := &config.Config{
		ContentSecurityPolicy: "default-src 'self'",
		StrictTransport:       "max-age=31536000",
	}

	r := chi.NewRouter()
	r.Use(middleware.SecureHeaders(cfg))
	r.Get("/", h.ShowLogin)
	r.Get("/login", h.ShowLogin)
	r.Get("/register", h.ShowRegister)
	r.Get("/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifyCSRF(sessions))
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
	})
	r.With(middleware.RequireAuth(sessions)).Get("/dashboard", h.Dashboard)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// browser is an http client with a cookie jar that does not follow
// redirects, so tests can assert on them.
type browser struct {
	t   *testing.T
	srv *httptest.Server
	c   *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:   t,
		srv: srv,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.c.Get(b.srv.URL + path)
	require.NoError(b.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	resp.Body.Close()
	return resp, string(body)
}

func (b *browser) postForm(path string, vals url.Values) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.c.PostForm(b.srv.URL+path, vals)
	require.NoError(b.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	resp.Body.Close()
	return resp, string(body)
}

// csrf fetches a form page and extracts the embedded token.
func (b *browser) csrf(path string) string {
	b.t.Helper()
	_, body := b.get(path)
	m := csrfRe.FindStringSubmatch(body)
	require.Len(b.t, m, 2, "page %s must embed a csrf token", path)
	return m[1]
}

func (b *browser) register(username, password string) (*http.Response, string) {
	b.t.Helper()
	token := b.csrf("/register")
	return b.postForm("/register", url.Values{
		"username":   {username},
		"password":   {password},
		"csrf_token": {token},
	})
}

func (b *browser) login(username, password string) (*http.Response, string) {
	b.t.Helper()
	token := b.csrf("/login")
	return b.postForm("/login", url.Values{
		"username":   {username},
		"password":   {password},
		"csrf_token": {token},
	})
}

func TestRegisterAndLoginFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.register("alice", "Secret123!")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?registered=1", resp.Header.Get("Location"))

	resp, _ = b.login("alice", "Secret123!")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, body := b.get("/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome, alice.")
}

func TestDuplicateRegistrationLeavesCredentialUnchanged(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.register("alice", "Secret123!")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body := b.register("alice", "Other456!")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Username already taken")

	// The second password must not work; the first still must.
	resp, _ = b.login("alice", "Other456!")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = b.login("alice", "Secret123!")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.register("alice", "Secret123!")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	respWrongPw, bodyWrongPw := b.login("alice", "not-the-password")
	respNoUser, bodyNoUser := b.login("mallory", "whatever123")

	assert.Equal(t, http.StatusUnauthorized, respWrongPw.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, respNoUser.StatusCode)
	assert.Contains(t, bodyWrongPw, "Invalid username or password.")

	// Same status, same page, same message: nothing to enumerate users with.
	assert.Equal(t, normalizeCSRF(bodyWrongPw), normalizeCSRF(bodyNoUser))
}

// normalizeCSRF blanks the per-session token so page bodies can be
// compared across sessions.
func normalizeCSRF(body string) string {
	return csrfRe.ReplaceAllString(body, `name="csrf_token" value=""`)
}

func TestRegistrationValidation(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, body := b.register("al", "Secret123!")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Username must be")

	resp, body = b.register("alice", "short")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Password must be")

	// Neither invalid submission created a user.
	resp, _ = b.login("alice", "short")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCSRFRejection(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	// Missing token on an otherwise valid session.
	b.csrf("/register")
	resp, _ := b.postForm("/register", url.Values{
		"username": {"alice"},
		"password": {"Secret123!"},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Wrong token.
	resp, _ = b.postForm("/register", url.Values{
		"username":   {"alice"},
		"password":   {"Secret123!"},
		"csrf_token": {strings.Repeat("ab", 32)},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// No session cookie at all.
	noCookies := newBrowser(t, srv)
	resp, _ = noCookies.postForm("/login", url.Values{
		"username":   {"alice"},
		"password":   {"Secret123!"},
		"csrf_token": {strings.Repeat("ab", 32)},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The rejected submissions never reached the user store.
	resp, _ = b.login("alice", "Secret123!")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDashboardRequiresSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// An anonymous (pre-login) session is not enough either.
	b.csrf("/login")
	resp, _ = b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.register("alice", "Secret123!")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = b.login("alice", "Secret123!")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?loggedout=1", resp.Header.Get("Location"))

	resp, _ = b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLogoutWithoutSessionIsNoopRedirect(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?loggedout=1", resp.Header.Get("Location"))
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	check := func(resp *http.Response) {
		t.Helper()
		assert.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
		assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "max-age=31536000", resp.Header.Get("Strict-Transport-Security"))
	}

	resp, _ := b.get("/login")
	check(resp)

	// A CSRF rejection carries them too.
	resp, _ = b.postForm("/login", url.Values{"csrf_token": {"bogus"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	check(resp)

	// As does a redirect off a protected route.
	resp, _ = b.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	check(resp)
}

func TestLoginRateLimit(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.register("alice", "Secret123!")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	for i := 0; i < 5; i++ {
		resp, _ = b.login("alice", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, _ = b.login("alice", "Secret123!")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestSessionCookieAttributes(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp, _ := b.register("alice", "Secret123!")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	token := b.csrf("/login")
	resp, _ = b.postForm("/login", url.Values{
		"username":   {"alice"},
		"password":   {"Secret123!"},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name != auth.SessionCookie {
			continue
		}
		found = true
		assert.True(t, c.HttpOnly, "session cookie must be HttpOnly")
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.NotEmpty(t, c.Value)
	}
	require.True(t, found, "login must set the session cookie")
}
