package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler manages sessions: password login, GitHub sign-in and logout.
//
// The session is a JWT in the HttpOnly "token" cookie. auth.RequireAuth and
// auth.OptionalAuth read it back on later requests.
type AuthHandler struct {
	auth   *service.AuthService
	github *auth.GitHubProvider // nil when GitHub sign-in is not configured
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. ttl sets the cookie lifetime and
// should match the token TTL; secure marks cookies HTTPS-only.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	ttl time.Duration,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		github: github,
		ttl:    ttl,
		secure: secure,
		logger: logger,
	}
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	User     *model.User `json:"user"`
	Message  string      `json:"message"`
	Redirect string      `json:"redirect"`
}

// HandleLogin checks a username and password and sets the session cookie.
//
// HTTP: POST /login
// BODY: {"username": "...", "password": "..."} or the same as form fields.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if isJSON(r) {
		if err := decodeJSON(r, &creds); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}
	} else {
		if err := parseForm(r); err != nil {
			writeBadRequest(w, "Invalid form body")
			return
		}
		defer cleanupForm(r)
		creds.Username = r.FormValue("username")
		creds.Password = r.FormValue("password")
	}

	result, err := h.auth.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, LoginResponse{
		User:     result.User,
		Message:  "Logged in as " + result.User.Username,
		Redirect: "/",
	})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state is stored in a short-lived cookie and checked on callback
// so only flows started here are accepted.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter
//  2. Exchange the code for a GitHub profile
//  3. Upsert the user and issue a token (AuthService)
//  4. Set the session cookie and redirect home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeBadRequest(w, "invalid OAuth state")
		return
	}
	if q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeBadRequest(w, "invalid OAuth state")
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		writeBadRequest(w, "missing OAuth code")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "auth_failed", Message: "authentication failed"})
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /logout
//
// Tokens are stateless, so an already-issued token stays valid until it
// expires; the browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "You have been logged out.", "redirect": "/"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
