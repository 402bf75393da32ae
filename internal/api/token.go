package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lmarques/tutorchat/internal/config"
	apierrors "github.com/lmarques/tutorchat/internal/errors"
)

// TokenSource supplies bearer tokens for backend requests. Refresh is
// called at most once per failed request; implementations decide whether a
// refresh is possible at all.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource wraps a fixed token. Refresh always fails, so a 401
// surfaces immediately. Used in tests and for short-lived scripted calls.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", apierrors.ErrNotLoggedIn
	}
	return string(s), nil
}

func (s StaticTokenSource) Refresh(ctx context.Context) (string, error) {
	return "", apierrors.ErrSessionExpired
}

// CredentialsTokenSource serves tokens from the stored credentials file and
// refreshes them against the backend's /token endpoint using the refresh
// token. It persists rotated tokens back to disk so the next invocation of
// the CLI picks them up.
type CredentialsTokenSource struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	creds *config.Credentials
}

// NewCredentialsTokenSource builds a token source around stored credentials.
func NewCredentialsTokenSource(baseURL string, creds *config.Credentials) *CredentialsTokenSource {
	return &CredentialsTokenSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		creds:      creds,
	}
}

// Token returns the current access token.
func (s *CredentialsTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := config.ValidateCredentials(s.creds); err != nil {
		return "", err
	}
	return s.creds.AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token and persists
// the rotated credentials.
func (s *CredentialsTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil || s.creds.RefreshToken == "" {
		return "", apierrors.ErrSessionExpired
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.creds.RefreshToken)

	creds, err := requestToken(ctx, s.httpClient, s.baseURL, form)
	if err != nil {
		return "", err
	}

	creds.Username = s.creds.Username
	if creds.RefreshToken == "" {
		creds.RefreshToken = s.creds.RefreshToken
	}
	s.creds = creds

	if err := config.SaveCredentials(creds); err != nil {
		// Tokens are still valid in memory; persisting them is best effort.
		return creds.AccessToken, nil
	}

	return creds.AccessToken, nil
}

// Login exchanges a username and password for tokens at POST /token and
// persists them. Mirrors the password grant the backend exposes.
func Login(ctx context.Context, baseURL, username, password string) (*config.Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	hc := &http.Client{Timeout: defaultTimeout}
	creds, err := requestToken(ctx, hc, strings.TrimRight(baseURL, "/"), form)
	if err != nil {
		return nil, err
	}

	creds.Username = username
	if err := config.SaveCredentials(creds); err != nil {
		return nil, err
	}

	return creds, nil
}

// requestToken POSTs a form to /token and decodes the token response.
func requestToken(ctx context.Context, hc *http.Client, baseURL string, form url.Values) (*config.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, apierrors.NewTimeoutError("/token")
		}
		return nil, apierrors.NewNetworkError("/token", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apierrors.NewNetworkError("/token", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apierrors.NewAuthError(resp.StatusCode, errorDetail(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierrors.NewAPIError(resp.StatusCode, "/token", errorDetail(body))
	}

	parsed := gjson.ParseBytes(body)
	access := parsed.Get("access_token").String()
	if access == "" {
		return nil, apierrors.NewParseError("no access_token in response", "access_token")
	}

	creds := &config.Credentials{
		AccessToken:  access,
		RefreshToken: parsed.Get("refresh_token").String(),
	}
	if ttl := parsed.Get("expires_in").Int(); ttl > 0 {
		creds.ExpiresAt = time.Now().Add(time.Duration(ttl) * time.Second)
	}

	return creds, nil
}
