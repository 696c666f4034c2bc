package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/store"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	defaultRedirectURI = "http://127.0.0.1:8347/callback"
)

// ExpirySkew is subtracted from the stored expiry when deciding whether
// an access token is still usable, so a token is refreshed before it
// actually lapses mid-request.
const ExpirySkew = 30 * time.Second

// Manager owns the session token lifecycle: issuance via the
// authorization-code-with-PKCE exchange, expiry-aware retrieval, and
// silent refresh. Both halves of the login flow are connected only
// through material persisted in the credential store, so the flow
// survives process restarts between BeginLogin and HandleCallback.
type Manager struct {
	store  store.Store
	pkce   *PKCE
	logger *log.Logger

	// endpoint and navigate are overridable for tests.
	endpoint oauth2.Endpoint
	navigate func(url string) error
	now      func() time.Time

	httpClient *http.Client
}

// NewManager creates a session manager backed by the given credential store.
func NewManager(s store.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		store:    s,
		pkce:     NewPKCE(s),
		logger:   logger,
		endpoint: oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL},
		navigate: shared.OpenBrowser,
		now:      time.Now,
	}
}

// oauthConfig builds the oauth2 client configuration. No client secret:
// the PKCE verifier is the only proof of possession.
func (m *Manager) oauthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	redirect := cfg.RedirectURI
	if redirect == "" {
		redirect = defaultRedirectURI
	}

	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: redirect,
		Scopes:      cfg.ScopeList(),
		Endpoint:    m.endpoint,
	}
}

// BeginLogin starts a login attempt: generates fresh PKCE material,
// builds the authorization URL, and navigates to it (opens the system
// browser). The returned URL is for display when navigation fails.
func (m *Manager) BeginLogin(cfg shared.SpotifyConfig) (string, error) {
	if cfg.ClientID == "" {
		return "", fmt.Errorf("%w: spotify client_id is required", shared.ErrMissingConfig)
	}

	material, err := m.pkce.Start()
	if err != nil {
		return "", err
	}

	conf := m.oauthConfig(cfg)
	authURL := conf.AuthCodeURL(material.State, oauth2.S256ChallengeOption(material.Verifier))

	m.logger.Debug("starting login attempt", "redirect_uri", conf.RedirectURL)

	if err := m.navigate(authURL); err != nil {
		m.logger.Warnf("failed to open browser automatically %v", err)
	}

	return authURL, nil
}

// HandleCallback completes a login attempt from a redirect callback URL.
//
// Returns false when the URL carries no authorization code, the normal
// case for any page that is not a redirect return. When a code is
// present, the state is validated (anti-CSRF, mandatory), the code is
// exchanged for tokens with the stored verifier, and the resulting
// session is persisted.
func (m *Manager) HandleCallback(ctx context.Context, rawURL string, cfg shared.SpotifyConfig) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("%w: malformed callback URL: %v", shared.ErrInvalidArgument, err)
	}

	query := u.Query()
	code := query.Get("code")
	if code == "" {
		return false, nil
	}

	verifier, err := m.pkce.Complete(query.Get("state"))
	if err != nil {
		return false, err
	}

	conf := m.oauthConfig(cfg)
	token, err := conf.Exchange(m.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return false, fmt.Errorf("%w: status %d: %s", shared.ErrTokenExchange, retrieveErr.Response.StatusCode, string(retrieveErr.Body))
		}
		return false, fmt.Errorf("%w: %v", shared.ErrTokenExchange, err)
	}

	if err := m.saveToken(token); err != nil {
		return false, err
	}

	// The attempt is finished; the material must never be reused.
	if err := m.pkce.Purge(); err != nil {
		m.logger.Warnf("failed to clear pkce material %v", err)
	}

	m.logger.Info("authorization complete", "expires_at", token.Expiry)
	return true, nil
}

// ValidAccessToken returns a usable access token, silently refreshing
// when the stored one is expired. An empty string means "no session":
// that is an expected steady-state outcome, never an error. The error
// return covers credential-store I/O failures only.
func (m *Manager) ValidAccessToken(ctx context.Context, cfg shared.SpotifyConfig) (string, error) {
	access, err := m.store.Get(keyAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}

	if access != "" && !m.expired() {
		return access, nil
	}

	refresh, err := m.store.Get(keyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if refresh == "" {
		return "", nil
	}

	conf := m.oauthConfig(cfg)
	source := conf.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: refresh})

	token, err := source.Token()
	if err != nil {
		// Refresh failure is an expected steady-state event, not a
		// protocol violation: resolve to "no session".
		m.logger.Debug("silent refresh failed", "error", err)
		return "", nil
	}

	if err := m.saveToken(token); err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// SignOut clears all persisted session and PKCE material. Idempotent.
func (m *Manager) SignOut() error {
	var lastErr error
	for _, key := range []string{keyVerifier, keyState, keyAccessToken, keyTokenExpiry, keyRefreshToken} {
		if err := m.store.Delete(key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Status describes the stored session for display.
type Status struct {
	HasAccessToken  bool
	HasRefreshToken bool
	ExpiresAt       time.Time
}

// SessionStatus reports whether a session is stored and when its access
// token expires.
func (m *Manager) SessionStatus() (Status, error) {
	access, err := m.store.Get(keyAccessToken)
	if err != nil {
		return Status{}, err
	}
	refresh, err := m.store.Get(keyRefreshToken)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		HasAccessToken:  access != "",
		HasRefreshToken: refresh != "",
	}

	if ms := m.expiryMillis(); ms > 0 {
		status.ExpiresAt = time.UnixMilli(ms)
	}

	return status, nil
}

// saveToken persists the session entries. A refresh response may omit a
// new refresh token (rotation is optional upstream); the previous one is
// preserved in that case.
func (m *Manager) saveToken(token *oauth2.Token) error {
	if err := m.store.Set(keyAccessToken, token.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}

	expiry := strconv.FormatInt(token.Expiry.UnixMilli(), 10)
	if err := m.store.Set(keyTokenExpiry, expiry); err != nil {
		return fmt.Errorf("failed to persist token expiry: %w", err)
	}

	if token.RefreshToken != "" {
		if err := m.store.Set(keyRefreshToken, token.RefreshToken); err != nil {
			return fmt.Errorf("failed to persist refresh token: %w", err)
		}
	}

	return nil
}

// expiryMillis reads the stored expiry, returning 0 when absent or unparseable.
func (m *Manager) expiryMillis() int64 {
	raw, err := m.store.Get(keyTokenExpiry)
	if err != nil || raw == "" {
		return 0
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// expired reports whether the stored access token is past its usable
// window, including the skew margin.
func (m *Manager) expired() bool {
	ms := m.expiryMillis()
	if ms == 0 {
		return true
	}
	return !m.now().Before(time.UnixMilli(ms).Add(-ExpirySkew))
}

// clientContext injects a custom HTTP client into oauth2 calls when one
// is configured.
func (m *Manager) clientContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// StripAuthParams removes the transient code, state, and iss query
// parameters from a callback URL, leaving any other parameters intact.
func StripAuthParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := u.Query()
	query.Del("code")
	query.Del("state")
	query.Del("iss")
	u.RawQuery = query.Encode()

	return u.String()
}
