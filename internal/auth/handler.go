package auth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/skumar/authdemo/internal/models"
	"github.com/skumar/authdemo/internal/store"
	"github.com/skumar/authdemo/internal/web"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPw string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Every login failure, whatever the cause, produces this exact message so
// responses don't reveal whether the username exists.
const loginFailedMsg = "Invalid username or password."

// Compared against when the username doesn't exist, so lookups and misses
// take roughly the same time.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Handler holds the auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions SessionStore
	limiter  LoginLimiter
	pages    *web.Pages
	log      *slog.Logger
	validate *validator.Validate

	sessionTTL   time.Duration
	cookieSecure bool
}

func NewHandler(users UserStore, sessions SessionStore, limiter LoginLimiter, pages *web.Pages, log *slog.Logger, ttl time.Duration, cookieSecure bool) *Handler {
	return &Handler{
		users:        users,
		sessions:     sessions,
		limiter:      limiter,
		pages:        pages,
		log:          log,
		validate:     validator.New(),
		sessionTTL:   ttl,
		cookieSecure: cookieSecure,
	}
}

// ShowLogin renders the login form. It also serves GET / .
func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ensureSession(w, r)
	if err != nil {
		h.serverError(w, r, "ensure session", err)
		return
	}
	h.pages.Login(w, http.StatusOK, web.PageData{
		CSRFToken: sess.CSRFToken,
		Flash:     loginFlash(r),
	})
}

// ShowRegister renders the registration form.
func (h *Handler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ensureSession(w, r)
	if err != nil {
		h.serverError(w, r, "ensure session", err)
		return
	}
	h.pages.Register(w, http.StatusOK, web.PageData{CSRFToken: sess.CSRFToken})
}

// Register creates a new user. The CSRF middleware has already matched the
// form token against the session before this runs.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	form := models.RegisterForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validate.Struct(form); err != nil {
		h.pages.Register(w, http.StatusUnprocessableEntity, web.PageData{
			CSRFToken: sess.CSRFToken,
			Username:  form.Username,
			Error:     registerValidationMsg(err),
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, r, "hash password", err)
		return
	}

	if _, err := h.users.CreateUser(r.Context(), form.Username, string(hashed)); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			h.pages.Register(w, http.StatusUnprocessableEntity, web.PageData{
				CSRFToken: sess.CSRFToken,
				Username:  form.Username,
				Error:     "Username already taken. Please choose another.",
			})
			return
		}
		h.serverError(w, r, "create user", err)
		return
	}

	h.log.Info("user registered", "username", form.Username)
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

// Login authenticates a user and rotates the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if retry, err := h.limiter.RetryAfter(r.Context(), ip); err != nil {
		h.serverError(w, r, "rate limiter", err)
		return
	} else if retry > 0 {
		w.Header().Set("Retry-After", formatSeconds(retry))
		sess := SessionFromContext(r.Context())
		h.pages.Login(w, http.StatusTooManyRequests, web.PageData{
			CSRFToken: sess.CSRFToken,
			Error:     "Too many failed attempts. Try again later.",
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	form := models.LoginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	user, err := h.users.GetUserByUsername(r.Context(), form.Username)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		h.serverError(w, r, "lookup user", err)
		return
	}

	hash := dummyHash
	if user != nil {
		hash = []byte(user.Password)
	}
	if user == nil || bcrypt.CompareHashAndPassword(hash, []byte(form.Password)) != nil {
		if err := h.limiter.RecordFailure(r.Context(), ip); err != nil {
			h.log.Error("record login failure", "error", err)
		}
		sess := SessionFromContext(r.Context())
		h.pages.Login(w, http.StatusUnauthorized, web.PageData{
			CSRFToken: sess.CSRFToken,
			Error:     loginFailedMsg,
		})
		return
	}

	if err := h.limiter.Reset(r.Context(), ip); err != nil {
		h.log.Error("reset login limiter", "error", err)
	}

	// Rotate: the anonymous session and its CSRF token die with the login.
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		_ = h.sessions.Delete(r.Context(), cookie.Value)
	}

	sess, err := NewSession(user.ID, user.Username, h.sessionTTL)
	if err != nil {
		h.serverError(w, r, "new session", err)
		return
	}
	token, err := h.sessions.Create(r.Context(), sess)
	if err != nil {
		h.serverError(w, r, "create session", err)
		return
	}

	h.setSessionCookie(w, token)
	h.log.Info("user logged in", "username", user.Username)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the current session and redirects to the login page.
// Without an active session it is a no-op redirect, not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.log.Error("delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login?loggedout=1", http.StatusSeeOther)
}

// Dashboard renders the protected landing page. RequireAuth has already
// put the session into the request context.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.pages.Dashboard(w, web.PageData{
		Username:  sess.Username,
		CSRFToken: sess.CSRFToken,
	})
}

// ensureSession returns the request's session, creating an anonymous one
// (and setting its cookie) when none exists, so pre-login forms have a
// CSRF token to embed.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) (*models.Session, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		sess, err := h.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}

	sess, err := NewSession("", "", h.sessionTTL)
	if err != nil {
		return nil, err
	}
	token, err := h.sessions.Create(r.Context(), sess)
	if err != nil {
		return nil, err
	}
	h.setSessionCookie(w, token)
	return sess, nil
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL / time.Second),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error(op, "error", err, "path", r.URL.Path)
	h.pages.ServerError(w)
}

func loginFlash(r *http.Request) string {
	switch {
	case r.URL.Query().Get("registered") == "1":
		return "Registration successful! You can now log in."
	case r.URL.Query().Get("loggedout") == "1":
		return "You have been logged out."
	}
	return ""
}

func registerValidationMsg(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Username":
			return "Username must be 3-50 letters or digits."
		case "Password":
			return "Password must be 8-128 characters."
		}
	}
	return "Invalid input."
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// formatSeconds renders a Retry-After value; the header takes seconds.
func formatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
