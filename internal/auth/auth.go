// Package auth implements the browser-based login flow: it hands the user a
// Keycloak authorization URL, catches the redirect on a local callback
// server, and exchanges the authorization code for an access token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"agentcli/internal/store"
)

// CallbackAddr is where the identity provider redirects after login. The
// path and port are registered with the client, so neither is configurable.
const (
	CallbackAddr = "localhost:8081"
	CallbackPath = "/sso-callback"
)

var redirectURI = "http://" + CallbackAddr + CallbackPath

// Authenticator drives the authorization-code flow against Keycloak.
type Authenticator struct {
	keycloakURL string
	realm       string
	clientID    string
	httpClient  *http.Client
}

// New builds an authenticator from resolved settings.
func New(settings *store.Settings) *Authenticator {
	return &Authenticator{
		keycloakURL: strings.TrimRight(settings.KeycloakURL, "/"),
		realm:       settings.KeycloakRealm,
		clientID:    settings.KeycloakClientID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// LoginURL is the authorization URL the user opens in a browser.
func (a *Authenticator) LoginURL() string {
	query := url.Values{}
	query.Set("client_id", a.clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("response_type", "code")
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/auth?%s", a.keycloakURL, a.realm, query.Encode())
}

// WaitForCallback serves the local redirect endpoint until one authorization
// code arrives or the context expires.
func (a *Authenticator) WaitForCallback(ctx context.Context) (string, error) {
	type outcome struct {
		code string
		err  error
	}
	results := make(chan outcome, 1)

	router := chi.NewRouter()
	router.Get(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		if errCode := r.URL.Query().Get("error"); errCode != "" {
			http.Error(w, "Login failed. You can close this window.", http.StatusBadRequest)
			results <- outcome{err: fmt.Errorf("identity provider returned %s: %s", errCode, r.URL.Query().Get("error_description"))}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			results <- outcome{err: errors.New("callback request carried no authorization code")}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>Login successful. You can close this window and return to the terminal.</p></body></html>")
		results <- outcome{code: code}
	})

	server := &http.Server{Addr: CallbackAddr, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	select {
	case res := <-results:
		return res.code, res.err
	case err := <-serveErr:
		return "", fmt.Errorf("failed to serve login callback on %s: %w", CallbackAddr, err)
	case <-ctx.Done():
		return "", fmt.Errorf("login timed out: %w", ctx.Err())
	}
}

// ExchangeCode trades an authorization code for an access token.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (string, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", a.keycloakURL, a.realm)

	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("token response carried no access token")
	}
	return payload.AccessToken, nil
}
