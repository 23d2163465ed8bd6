// Package oauth2 implements the browser-redirect Google login flow. It is
// the alternative entry point to the token-POST endpoint: the server
// redirects the browser to Google's consent screen, receives the callback,
// exchanges the code and hands the resulting claims to the application.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	ca "github.com/courseai/courseai"
)

const stateCookieName = "oauthstate"

// defaultUserInfoURL is Google's OpenID userinfo endpoint.
const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// ClaimsHandlerFunc receives the verified claims at the end of a successful
// callback and owns the response (typically provisioning the account and
// redirecting back into the app).
type ClaimsHandlerFunc func(w http.ResponseWriter, r *http.Request, claims ca.FederatedClaims)

// GoogleFlow drives the redirect leg of Google sign-in. Zero values are not
// usable; construct with NewGoogleFlow.
type GoogleFlow struct {
	config      oauth2.Config
	handle      ClaimsHandlerFunc
	logger      *slog.Logger
	client      *http.Client
	userInfoURL string
}

func NewGoogleFlow(clientID, clientSecret, callbackURL string, handle ClaimsHandlerFunc, logger *slog.Logger) *GoogleFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleFlow{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		handle:      handle,
		logger:      logger,
		client:      http.DefaultClient,
		userInfoURL: defaultUserInfoURL,
	}
}

// Start redirects the browser to Google's consent screen, planting a random
// state value in a short-lived cookie for the callback to verify.
func (g *GoogleFlow) Start(w http.ResponseWriter, r *http.Request) {
	state := newState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, g.config.AuthCodeURL(state), http.StatusFound)
}

// Callback verifies the state cookie, exchanges the authorization code and
// passes the fetched profile claims to the configured handler.
func (g *GoogleFlow) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || r.FormValue("state") != cookie.Value {
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})

	token, err := g.config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		g.logger.Warn("oauth code exchange failed", "error", err)
		http.Error(w, "Google Auth Failed", http.StatusBadRequest)
		return
	}
	claims, err := g.fetchClaims(r.Context(), token)
	if err != nil {
		g.logger.Warn("oauth userinfo fetch failed", "error", err)
		http.Error(w, "Google Auth Failed", http.StatusBadRequest)
		return
	}
	g.handle(w, r, claims)
}

func (g *GoogleFlow) fetchClaims(ctx context.Context, token *oauth2.Token) (ca.FederatedClaims, error) {
	var claims ca.FederatedClaims
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return claims, err
	}
	token.SetAuthHeader(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return claims, fmt.Errorf("fetching user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return claims, fmt.Errorf("user info endpoint returned %d", resp.StatusCode)
	}
	var profile struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return claims, fmt.Errorf("decoding user info: %w", err)
	}
	if profile.Email == "" {
		return claims, fmt.Errorf("user info missing email")
	}
	claims.Email = profile.Email
	claims.DisplayName = profile.Name
	claims.AvatarURL = profile.Picture
	return claims, nil
}

func newState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

