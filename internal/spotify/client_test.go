package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/chorus/internal/shared"
	mocks "github.com/desertthunder/chorus/internal/testing"
)

// staticTokens is a TokenProvider returning a fixed token.
type staticTokens struct {
	token string
	err   error
}

func (s *staticTokens) ValidAccessToken(ctx context.Context, cfg shared.SpotifyConfig) (string, error) {
	return s.token, s.err
}

func newTestClient(t *testing.T, server *httptest.Server, token string) *Client {
	t.Helper()

	c := NewClient(&staticTokens{token: token}, shared.SpotifyConfig{}, server.Client(), shared.NewLogger(nil))
	c.baseURL = server.URL
	return c
}

func TestClientAuthorizedRequest(t *testing.T) {
	t.Run("Requires A Usable Token", func(t *testing.T) {
		var hits int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
		}))
		defer server.Close()

		c := newTestClient(t, server, "")

		err := c.AuthorizedRequest(context.Background(), "/me", nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if hits != 0 {
			t.Errorf("expected no request without a token, got %d", hits)
		}
	})

	t.Run("Propagates Provider Errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		wantErr := errors.New("credential store offline")
		c := newTestClient(t, server, "x")
		c.sessions = &staticTokens{err: wantErr}

		if err := c.AuthorizedRequest(context.Background(), "/me", nil); !errors.Is(err, wantErr) {
			t.Errorf("expected provider error, got %v", err)
		}
	})

	t.Run("Sets Bearer Header And Decodes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer token-123" {
				t.Errorf("expected bearer header, got %q", r.Header.Get("Authorization"))
			}
			if r.URL.Path != "/me" {
				t.Errorf("expected path /me, got %s", r.URL.Path)
			}
			w.Write([]byte(`{"id":"u1","display_name":"Ada"}`))
		}))
		defer server.Close()

		c := newTestClient(t, server, "token-123")

		var user SpotifyUser
		if err := c.AuthorizedRequest(context.Background(), "/me", &user); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "u1" || user.DisplayName != "Ada" {
			t.Errorf("unexpected decoded user: %+v", user)
		}
	})

	t.Run("Accepts Absolute URLs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/me/playlists" {
				t.Errorf("expected absolute path to be used verbatim, got %s", r.URL.Path)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := newTestClient(t, server, "token-123")
		c.baseURL = "http://invalid.example"

		if err := c.AuthorizedRequest(context.Background(), server.URL+"/v1/me/playlists", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Transport Failures Are Wrapped", func(t *testing.T) {
		rt := mocks.NewMockRoundTripper(nil, errors.New("connection refused"))

		c := NewClient(&staticTokens{token: "t"}, shared.SpotifyConfig{}, &http.Client{Transport: rt}, shared.NewLogger(nil))

		if err := c.AuthorizedRequest(context.Background(), "/me", nil); err == nil {
			t.Error("expected transport error to propagate")
		}
		if len(rt.Requests) != 1 {
			t.Errorf("expected 1 recorded request, got %d", len(rt.Requests))
		}
	})

	t.Run("Empty Body With Nil Result", func(t *testing.T) {
		rt := mocks.NewMockRoundTripper(&http.Response{
			StatusCode: http.StatusNoContent,
			Body:       http.NoBody,
			Header:     http.Header{},
		}, nil)

		c := NewClient(&staticTokens{token: "t"}, shared.SpotifyConfig{}, &http.Client{Transport: rt}, shared.NewLogger(nil))

		if err := c.AuthorizedRequest(context.Background(), "/me/tracks", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rt.Requests) != 1 {
			t.Fatalf("expected 1 recorded request, got %d", len(rt.Requests))
		}
		if rt.Requests[0].Header.Get("Authorization") != "Bearer t" {
			t.Errorf("expected bearer header on recorded request, got %q", rt.Requests[0].Header.Get("Authorization"))
		}
	})

	t.Run("Surfaces API Errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"status":404,"message":"Not found"}}`, http.StatusNotFound)
		}))
		defer server.Close()

		c := newTestClient(t, server, "token-123")

		err := c.AuthorizedRequest(context.Background(), "/playlists/missing", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", apiErr.Status)
		}
		if apiErr.Body == "" {
			t.Error("expected response body to be captured")
		}
	})
}
