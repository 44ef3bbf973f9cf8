package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/auth"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/service"
)

const stateCookieName = "oauth_state"

// GitHubAuthenticator is the part of auth.GitHubProvider the handler uses.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages accounts and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUp / HandleSignIn → email+password, sets the session cookie
//   - HandleSignOut               → clears the session cookie
//   - HandleSession               → the signed-in user's profile
//   - HandleGitHubLogin / HandleGitHubCallback → GitHub OAuth sign-in
//
// DEPENDENCY CHAIN:
//   - accounts *service.AccountService → users, passwords, token issuing
//   - github   GitHubAuthenticator     → nil when GitHub sign-in is not configured
type AuthHandler struct {
	accounts      *service.AccountService
	github        GitHubAuthenticator
	secureCookies bool
	appURL        string
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. appURL is where the browser lands
// after GitHub sign-in.
func NewAuthHandler(
	accounts *service.AccountService,
	github GitHubAuthenticator,
	secureCookies bool,
	appURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:      accounts,
		github:        github,
		secureCookies: secureCookies,
		appURL:        appURL,
		logger:        logger,
	}
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// HandleSignUp creates a password account and signs it in.
//
// HTTP: POST /api/auth/sign-up/email
// REQUEST BODY: {"name", "email", "password"}
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, errInvalidJSON)
		return
	}

	res, err := h.accounts.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res)
	writeJSON(w, http.StatusCreated, authResponse{User: res.User, Token: res.Token})
}

// HandleSignIn checks an email and password.
//
// HTTP: POST /api/auth/sign-in/email
// REQUEST BODY: {"email", "password", "rememberMe"}
//
// rememberMe defaults to true. When false the cookie has no Max-Age, so the
// browser drops it when it closes.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe *bool  `json:"rememberMe"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, errInvalidJSON)
		return
	}
	rememberMe := req.RememberMe == nil || *req.RememberMe

	res, err := h.accounts.SignIn(r.Context(), req.Email, req.Password, rememberMe)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, authResponse{User: res.User, Token: res.Token})
}

// HandleSignOut clears the session cookie.
//
// HTTP: POST /api/auth/sign-out
//
// Sessions are stateless JWTs, so the token itself stays valid until it
// expires; without the cookie the browser just stops sending it.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleSession returns the signed-in user.
//
// HTTP: GET /api/auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r, "Unauthorized")
	if !ok {
		return
	}

	user, err := h.accounts.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and into
// the GitHub URL. The callback only proceeds when the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes GitHub sign-in.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find or create the storefront account
//  4. Set the session cookie and send the browser to the account page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeError(w, apperror.Validation("INVALID_OAUTH_STATE", "state", "Invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, h.appURL+"/login?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.Validation("MISSING_OAUTH_CODE", "code", "Missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// --- Step 3: Find or create the account ---
	res, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	// --- Step 4: Session cookie + redirect ---
	h.setSessionCookie(w, res)
	http.Redirect(w, r, h.appURL+"/mi-cuenta", http.StatusSeeOther)
}

// setSessionCookie stores the session token in an HttpOnly cookie.
// HttpOnly keeps it away from JavaScript; SameSite=Lax keeps it off
// cross-site POSTs. Secure comes from COOKIE_SECURE (on behind HTTPS).
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, res *service.AuthResult) {
	c := &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if res.Persistent {
		c.MaxAge = int(res.TTL / time.Second)
	}
	http.SetCookie(w, c)
}
