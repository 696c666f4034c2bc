package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/store"
	"golang.org/x/oauth2"
)

// tokenServer is a fake accounts token endpoint recording every exchange.
type tokenServer struct {
	server   *httptest.Server
	requests []url.Values
	status   int
	response map[string]any
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{
		status: http.StatusOK,
		response: map[string]any{
			"access_token":  "fresh-access",
			"expires_in":    3600,
			"refresh_token": "fresh-refresh",
		},
	}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request form: %v", err)
		}
		ts.requests = append(ts.requests, r.PostForm)

		if ts.status != http.StatusOK {
			http.Error(w, "upstream error", ts.status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ts.response)
	}))
	t.Cleanup(ts.server.Close)

	return ts
}

func newTestManager(t *testing.T, s store.Store, ts *tokenServer) *Manager {
	t.Helper()

	m := NewManager(s, shared.NewLogger(nil))
	m.navigate = func(string) error { return nil }
	if ts != nil {
		m.endpoint = oauth2.Endpoint{
			AuthURL:  ts.server.URL + "/authorize",
			TokenURL: ts.server.URL + "/api/token",
		}
	}

	return m
}

func testConfig() shared.SpotifyConfig {
	return shared.SpotifyConfig{ClientID: "abc", RedirectURI: "http://127.0.0.1:8347/callback"}
}

func TestManagerBeginLogin(t *testing.T) {
	t.Run("Missing ClientID", func(t *testing.T) {
		m := newTestManager(t, store.NewMemStore(), nil)

		_, err := m.BeginLogin(shared.SpotifyConfig{})
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Builds Authorization URL", func(t *testing.T) {
		s := store.NewMemStore()
		m := newTestManager(t, s, nil)

		var navigated string
		m.navigate = func(u string) error {
			navigated = u
			return nil
		}

		authURL, err := m.BeginLogin(testConfig())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if navigated != authURL {
			t.Error("expected navigation to the returned URL")
		}

		parsed, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("failed to parse auth URL: %v", err)
		}

		query := parsed.Query()
		if query.Get("response_type") != "code" {
			t.Errorf("expected response_type=code, got %s", query.Get("response_type"))
		}
		if query.Get("code_challenge_method") != "S256" {
			t.Errorf("expected code_challenge_method=S256, got %s", query.Get("code_challenge_method"))
		}
		if query.Get("client_id") != "abc" {
			t.Errorf("expected client_id=abc, got %s", query.Get("client_id"))
		}
		if query.Get("code_challenge") == "" {
			t.Error("expected code_challenge to be set")
		}

		storedState, _ := s.Get(keyState)
		if storedState == "" || query.Get("state") != storedState {
			t.Error("expected URL state to match persisted state")
		}
	})
}

func TestManagerHandleCallback(t *testing.T) {
	t.Run("No Code Is A NoOp", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(t, store.NewMemStore(), ts)

		for _, rawURL := range []string{
			"http://127.0.0.1:8347/",
			"http://127.0.0.1:8347/callback",
			"http://127.0.0.1:8347/callback?state=xyz",
			"http://127.0.0.1:8347/callback?error=access_denied",
		} {
			handled, err := m.HandleCallback(context.Background(), rawURL, testConfig())
			if err != nil {
				t.Errorf("expected no error for %s, got %v", rawURL, err)
			}
			if handled {
				t.Errorf("expected %s to be a no-op", rawURL)
			}
		}

		if len(ts.requests) != 0 {
			t.Errorf("expected no token exchange, got %d requests", len(ts.requests))
		}
	})

	t.Run("State Mismatch Skips Exchange", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(t, store.NewMemStore(), ts)

		if _, err := m.BeginLogin(testConfig()); err != nil {
			t.Fatalf("failed to begin login: %v", err)
		}

		_, err := m.HandleCallback(context.Background(), "http://127.0.0.1:8347/callback?code=abc&state=forged", testConfig())
		if !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}

		if len(ts.requests) != 0 {
			t.Errorf("expected no token exchange after state mismatch, got %d requests", len(ts.requests))
		}
	})

	t.Run("Successful Exchange", func(t *testing.T) {
		ts := newTokenServer(t)
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		if _, err := m.BeginLogin(testConfig()); err != nil {
			t.Fatalf("failed to begin login: %v", err)
		}

		state, _ := s.Get(keyState)
		verifier, _ := s.Get(keyVerifier)

		before := time.Now()
		callbackURL := fmt.Sprintf("http://127.0.0.1:8347/callback?code=authcode&state=%s&iss=accounts", url.QueryEscape(state))
		handled, err := m.HandleCallback(context.Background(), callbackURL, testConfig())
		after := time.Now()

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !handled {
			t.Fatal("expected callback to be handled")
		}

		if len(ts.requests) != 1 {
			t.Fatalf("expected exactly one token exchange, got %d", len(ts.requests))
		}
		form := ts.requests[0]
		if form.Get("grant_type") != "authorization_code" {
			t.Errorf("expected grant_type=authorization_code, got %s", form.Get("grant_type"))
		}
		if form.Get("code") != "authcode" {
			t.Errorf("expected code=authcode, got %s", form.Get("code"))
		}
		if form.Get("code_verifier") != verifier {
			t.Error("expected code_verifier to match persisted verifier")
		}

		access, _ := s.Get(keyAccessToken)
		if access != "fresh-access" {
			t.Errorf("expected access token to be persisted, got %q", access)
		}
		refresh, _ := s.Get(keyRefreshToken)
		if refresh != "fresh-refresh" {
			t.Errorf("expected refresh token to be persisted, got %q", refresh)
		}

		expiryRaw, _ := s.Get(keyTokenExpiry)
		expiryMs, err := strconv.ParseInt(expiryRaw, 10, 64)
		if err != nil {
			t.Fatalf("expected numeric expiry, got %q", expiryRaw)
		}
		low := before.Add(3600 * time.Second).UnixMilli()
		high := after.Add(3600 * time.Second).UnixMilli()
		if expiryMs < low || expiryMs > high {
			t.Errorf("expected expiry within [%d, %d], got %d", low, high, expiryMs)
		}

		// Material is consumed exactly once.
		if v, _ := s.Get(keyVerifier); v != "" {
			t.Error("expected verifier to be cleared after success")
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.status = http.StatusBadRequest
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		m.BeginLogin(testConfig())
		state, _ := s.Get(keyState)

		_, err := m.HandleCallback(context.Background(), "http://127.0.0.1:8347/callback?code=bad&state="+url.QueryEscape(state), testConfig())
		if !errors.Is(err, shared.ErrTokenExchange) {
			t.Errorf("expected ErrTokenExchange, got %v", err)
		}

		if access, _ := s.Get(keyAccessToken); access != "" {
			t.Error("expected no session to be persisted on failed exchange")
		}
	})
}

func TestManagerValidAccessToken(t *testing.T) {
	seedSession := func(s store.Store, access string, expiresAt time.Time, refresh string) {
		s.Set(keyAccessToken, access)
		s.Set(keyTokenExpiry, strconv.FormatInt(expiresAt.UnixMilli(), 10))
		if refresh != "" {
			s.Set(keyRefreshToken, refresh)
		}
	}

	t.Run("Returns Cached Unexpired Token", func(t *testing.T) {
		ts := newTokenServer(t)
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		seedSession(s, "cached", time.Now().Add(time.Hour), "stored-refresh")

		token, err := m.ValidAccessToken(context.Background(), testConfig())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "cached" {
			t.Errorf("expected cached token, got %q", token)
		}
		if len(ts.requests) != 0 {
			t.Errorf("expected no refresh call, got %d", len(ts.requests))
		}
	})

	t.Run("Token Within Skew Window Is Expired", func(t *testing.T) {
		ts := newTokenServer(t)
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		// 10s remaining is inside the 30s skew margin.
		seedSession(s, "cached", time.Now().Add(10*time.Second), "stored-refresh")

		token, err := m.ValidAccessToken(context.Background(), testConfig())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "fresh-access" {
			t.Errorf("expected refreshed token, got %q", token)
		}
		if len(ts.requests) != 1 {
			t.Fatalf("expected exactly one refresh call, got %d", len(ts.requests))
		}
		if ts.requests[0].Get("grant_type") != "refresh_token" {
			t.Errorf("expected grant_type=refresh_token, got %s", ts.requests[0].Get("grant_type"))
		}
	})

	t.Run("No Refresh Token Means No Session", func(t *testing.T) {
		ts := newTokenServer(t)
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		seedSession(s, "cached", time.Now().Add(-time.Minute), "")

		token, err := m.ValidAccessToken(context.Background(), testConfig())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "" {
			t.Errorf("expected empty token, got %q", token)
		}
		if len(ts.requests) != 0 {
			t.Errorf("expected no exchange, got %d", len(ts.requests))
		}
	})

	t.Run("Refresh Failure Resolves To No Session", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.status = http.StatusBadRequest
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		seedSession(s, "cached", time.Now().Add(-time.Minute), "stored-refresh")

		token, err := m.ValidAccessToken(context.Background(), testConfig())
		if err != nil {
			t.Fatalf("expected no error for refresh failure, got %v", err)
		}
		if token != "" {
			t.Errorf("expected empty token, got %q", token)
		}
	})

	t.Run("Refresh Preserves Prior Refresh Token", func(t *testing.T) {
		ts := newTokenServer(t)
		delete(ts.response, "refresh_token")
		s := store.NewMemStore()
		m := newTestManager(t, s, ts)

		seedSession(s, "cached", time.Now().Add(-time.Minute), "stored-refresh")

		token, err := m.ValidAccessToken(context.Background(), testConfig())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "fresh-access" {
			t.Errorf("expected refreshed token, got %q", token)
		}

		refresh, _ := s.Get(keyRefreshToken)
		if refresh != "stored-refresh" {
			t.Errorf("expected prior refresh token preserved, got %q", refresh)
		}
	})
}

func TestManagerSignOut(t *testing.T) {
	s := store.NewMemStore()
	m := newTestManager(t, s, nil)

	s.Set(keyVerifier, "v")
	s.Set(keyState, "st")
	s.Set(keyAccessToken, "a")
	s.Set(keyTokenExpiry, "123")
	s.Set(keyRefreshToken, "r")

	if err := m.SignOut(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, key := range []string{keyVerifier, keyState, keyAccessToken, keyTokenExpiry, keyRefreshToken} {
		if value, _ := s.Get(key); value != "" {
			t.Errorf("expected %s to be cleared, got %q", key, value)
		}
	}

	// Idempotent.
	if err := m.SignOut(); err != nil {
		t.Errorf("expected repeated sign-out to succeed, got %v", err)
	}
}

func TestStripAuthParams(t *testing.T) {
	stripped := StripAuthParams("http://127.0.0.1:8347/callback?code=abc&state=xyz&iss=accounts&tab=library")

	if strings.Contains(stripped, "code=") || strings.Contains(stripped, "state=") || strings.Contains(stripped, "iss=") {
		t.Errorf("expected transient params to be removed, got %s", stripped)
	}
	if !strings.Contains(stripped, "tab=library") {
		t.Errorf("expected unrelated params to survive, got %s", stripped)
	}
}
