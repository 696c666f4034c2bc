// package spotify implements the authenticated, paginated fetch layer
// against the Spotify Web API.
//
// Raw API payloads never leave this package: tracks are sanitized into
// the library model at fetch time.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/shared"
	"golang.org/x/time/rate"
)

// TokenProvider supplies bearer credentials for API calls.
// Satisfied by [auth.Manager].
type TokenProvider interface {
	ValidAccessToken(ctx context.Context, cfg shared.SpotifyConfig) (string, error)
}

const spotifyBaseURL = "https://api.spotify.com/v1"

// defaultRateLimit is the sustained request rate against the API.
const defaultRateLimit = 8.0

// APIError is a non-2xx resource response, surfaced with status and
// body for caller diagnostics. A 401 here signals an inconsistency (the
// client already ensured a fresh token) and is not retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Body)
}

// Client performs authenticated GETs against the Spotify API, drawing
// bearer credentials from the session manager on every request.
type Client struct {
	sessions   TokenProvider
	cfg        shared.SpotifyConfig
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates an API client. A nil httpClient uses [http.DefaultClient].
func NewClient(sessions TokenProvider, cfg shared.SpotifyConfig, httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		sessions:   sessions,
		cfg:        cfg,
		baseURL:    spotifyBaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
		logger:     logger,
	}
}

// AuthorizedRequest performs a GET with a bearer token and decodes the
// JSON response into result.
//
// path may be a path relative to the API base or an absolute URL (the
// form pagination "next" pointers take).
func (c *Client) AuthorizedRequest(ctx context.Context, path string, result any) error {
	token, err := c.sessions.ValidAccessToken(ctx, c.cfg)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: no usable access token", shared.ErrNotAuthenticated)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted: %w", err)
	}

	apiURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		apiURL = c.baseURL + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
