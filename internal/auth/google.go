package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"pagesync/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// Handler serves the Google OAuth login/callback pair. The callback mints
// a local HS256 session token whose sub claim is the stable owner identity
// the sync engine compares against.
type Handler struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	FrontendURL  string
	HTTPClient   *http.Client
	TokenURL     string
}

func NewHandler() *Handler {
	return &Handler{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("REDIRECT_URI"),
		FrontendURL:  os.Getenv("FRONTEND_URL"),
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		TokenURL:     googleTokenURL,
	}
}

// Login redirects the browser to Google's consent screen.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	params := url.Values{
		"client_id":     {h.ClientID},
		"redirect_uri":  {h.RedirectURI},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	http.Redirect(w, r, googleAuthURL+"?"+params.Encode(), http.StatusFound)
}

// Callback exchanges the authorization code, reads the identity claims from
// the id_token, and redirects to the frontend with a freshly minted session
// token in the query string.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	idToken, err := h.exchangeCode(code)
	if err != nil {
		logger.Sugar.Errorf("Google OAuth exchange failed: %v", err)
		http.Error(w, "OAuth callback failed", http.StatusInternalServerError)
		return
	}

	sub, email, name, err := identityClaims(idToken)
	if err != nil {
		logger.Sugar.Errorf("Failed to read id_token claims: %v", err)
		http.Error(w, "OAuth callback failed", http.StatusInternalServerError)
		return
	}

	sessionToken, err := mintSessionToken(sub, email, name)
	if err != nil {
		logger.Sugar.Errorf("Failed to mint session token: %v", err)
		http.Error(w, "OAuth callback failed", http.StatusInternalServerError)
		return
	}

	params := url.Values{
		"token":     {sessionToken},
		"email":     {email},
		"name":      {name},
		"google_id": {sub},
	}
	http.Redirect(w, r, h.FrontendURL+"/?"+params.Encode(), http.StatusFound)
}

func (h *Handler) exchangeCode(code string) (string, error) {
	resp, err := h.HTTPClient.PostForm(h.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {h.ClientID},
		"client_secret": {h.ClientSecret},
		"redirect_uri":  {h.RedirectURI},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tokens struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", err
	}
	if tokens.IDToken == "" {
		return "", fmt.Errorf("token response has no id_token (status %d)", resp.StatusCode)
	}
	return tokens.IDToken, nil
}

// identityClaims pulls sub/email/name out of the id_token. The token was
// just received directly from Google's token endpoint over TLS, so the
// signature is not re-verified here.
func identityClaims(idToken string) (sub, email, name string, err error) {
	claims := jwt.MapClaims{}
	if _, _, err = jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", "", "", err
	}
	sub, _ = claims["sub"].(string)
	if sub == "" {
		return "", "", "", fmt.Errorf("id_token has no sub claim")
	}
	email, _ = claims["email"].(string)
	name, _ = claims["name"].(string)
	return sub, email, name, nil
}

func mintSessionToken(sub, email, name string) (string, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable not set")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"name":  name,
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}
