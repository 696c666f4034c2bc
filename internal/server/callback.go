package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/chorus/internal/auth"
	"github.com/desertthunder/chorus/internal/shared"
)

// CallbackResult contains the outcome of an OAuth callback.
type CallbackResult struct {
	Handled bool
	err     error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler receives the OAuth redirect and completes the login
// attempt through the session manager. State validation and the token
// exchange both happen inside the manager; this handler only carries
// the callback URL across.
//
// Implements the Handler interface for registration with a Router.
type CallbackHandler struct {
	sessions    *auth.Manager
	cfg         shared.SpotifyConfig
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a callback handler completing logins via
// the given session manager.
func NewCallbackHandler(sessions *auth.Manager, cfg shared.SpotifyConfig) *CallbackHandler {
	return &CallbackHandler{
		sessions:   sessions,
		cfg:        cfg,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	handled, err := h.sessions.HandleCallback(r.Context(), r.URL.String(), h.cfg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrStateMismatch) || errors.Is(err, shared.ErrMissingVerifier) {
			status = http.StatusBadRequest
		}
		h.Send(CallbackResult{err: err})
		http.Error(w, "Authorization failed", status)
		return
	}

	if !handled {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)
		h.Send(CallbackResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{Handled: true})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the callback result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}
