package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchAllPages(t *testing.T) {
	identity := func(raw json.RawMessage) (*string, error) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}

	t.Run("Follows Next Cursors In Order", func(t *testing.T) {
		var paths []string
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.RequestURI())

			switch r.URL.RequestURI() {
			case "/items?limit=2":
				fmt.Fprintf(w, `{"items":["a","b"],"next":"%s/items?limit=2&offset=2"}`, server.URL)
			case "/items?limit=2&offset=2":
				fmt.Fprint(w, `{"items":["c"],"next":null}`)
			default:
				t.Errorf("unexpected request %s", r.URL.RequestURI())
			}
		}))
		defer server.Close()

		c := newTestClient(t, server, "token")

		items, err := fetchAllPages(context.Background(), c, "/items?limit=2", identity)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(items) != 3 || items[0] != "a" || items[1] != "b" || items[2] != "c" {
			t.Errorf("expected [a b c], got %v", items)
		}

		// Cursor semantics: the second page is only requested after the
		// first has been consumed, and nothing beyond the null next.
		if len(paths) != 2 {
			t.Fatalf("expected exactly 2 requests, got %d: %v", len(paths), paths)
		}
		if paths[0] != "/items?limit=2" || paths[1] != "/items?limit=2&offset=2" {
			t.Errorf("unexpected request order: %v", paths)
		}
	})

	t.Run("Single Page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":["only"],"next":null}`)
		}))
		defer server.Close()

		c := newTestClient(t, server, "token")

		items, err := fetchAllPages(context.Background(), c, "/items", identity)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 1 || items[0] != "only" {
			t.Errorf("expected [only], got %v", items)
		}
	})

	t.Run("Empty Page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":[],"next":null}`)
		}))
		defer server.Close()

		c := newTestClient(t, server, "token")

		items, err := fetchAllPages(context.Background(), c, "/items", identity)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %v", items)
		}
	})

	t.Run("Nil Mapped Items Are Skipped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":["keep","drop","keep"],"next":null}`)
		}))
		defer server.Close()

		c := newTestClient(t, server, "token")

		items, err := fetchAllPages(context.Background(), c, "/items", func(raw json.RawMessage) (*string, error) {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			if s == "drop" {
				return nil, nil
			}
			return &s, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 items, got %v", items)
		}
	})

	t.Run("Map Errors Abort", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":[{"not":"a string"}],"next":null}`)
		}))
		defer server.Close()

		c := newTestClient(t, server, "token")

		if _, err := fetchAllPages(context.Background(), c, "/items", identity); err == nil {
			t.Error("expected mapping error to propagate")
		}
	})

	t.Run("Request Errors Abort", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := newTestClient(t, server, "token")

		_, err := fetchAllPages(context.Background(), c, "/items", identity)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "429") {
			t.Errorf("expected status in error, got %v", err)
		}
	})
}
