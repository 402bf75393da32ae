package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/lmarques/tutorchat/internal/config"
	apierrors "github.com/lmarques/tutorchat/internal/errors"
)

func TestLogin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("path = %s, want /token", r.URL.Path)
		}
		_ = r.ParseForm()
		gotForm = r.PostForm
		_, _ = w.Write([]byte(`{"access_token":"acc","refresh_token":"ref","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	creds, err := Login(context.Background(), server.URL, "alice", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if gotForm.Get("grant_type") != "password" || gotForm.Get("username") != "alice" {
		t.Errorf("form = %v", gotForm)
	}
	if creds.AccessToken != "acc" || creds.RefreshToken != "ref" || creds.Username != "alice" {
		t.Errorf("creds = %+v", creds)
	}
	if creds.ExpiresAt.IsZero() {
		t.Error("expires_in not applied")
	}

	// Tokens must be on disk for the next invocation.
	loaded, err := config.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials after login failed: %v", err)
	}
	if loaded.AccessToken != "acc" {
		t.Errorf("persisted token = %q", loaded.AccessToken)
	}
}

func TestLoginBadPassword(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
	}))
	t.Cleanup(server.Close)

	_, err := Login(context.Background(), server.URL, "alice", "wrong")
	if !apierrors.IsAuthError(err) {
		t.Errorf("err = %v, want auth error", err)
	}
}

func TestLoginMissingAccessToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	t.Cleanup(server.Close)

	if _, err := Login(context.Background(), server.URL, "alice", "secret"); err == nil {
		t.Error("Login without access_token succeeded")
	}
}

func TestCredentialsTokenSourceRefresh(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "ref-1" {
			t.Errorf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		// No rotated refresh token in the answer.
		_, _ = w.Write([]byte(`{"access_token":"acc-2"}`))
	}))
	t.Cleanup(server.Close)

	source := NewCredentialsTokenSource(server.URL, &config.Credentials{
		AccessToken:  "acc-1",
		RefreshToken: "ref-1",
		Username:     "alice",
	})

	token, err := source.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if token != "acc-2" {
		t.Errorf("token = %q", token)
	}

	// The old refresh token survives when the backend does not rotate it.
	next, err := source.Token(context.Background())
	if err != nil || next != "acc-2" {
		t.Errorf("Token after refresh = (%q, %v)", next, err)
	}
}

func TestCredentialsTokenSourceWithoutRefreshToken(t *testing.T) {
	source := NewCredentialsTokenSource("http://localhost:0", &config.Credentials{
		AccessToken: "acc",
	})

	if _, err := source.Refresh(context.Background()); !apierrors.IsAuthError(err) {
		t.Errorf("err = %v, want auth error", err)
	}
}

func TestStaticTokenSource(t *testing.T) {
	src := StaticTokenSource("fixed")
	if tok, err := src.Token(context.Background()); err != nil || tok != "fixed" {
		t.Errorf("Token = (%q, %v)", tok, err)
	}
	if _, err := src.Refresh(context.Background()); !apierrors.IsAuthError(err) {
		t.Errorf("Refresh err = %v, want auth error", err)
	}

	empty := StaticTokenSource("")
	if _, err := empty.Token(context.Background()); !apierrors.IsAuthError(err) {
		t.Errorf("empty Token err = %v", err)
	}
}
