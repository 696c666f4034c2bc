// package auth owns the PKCE login flow and the access/refresh token
// lifecycle against the Spotify accounts service.
package auth

import (
	"fmt"

	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/store"
	"golang.org/x/oauth2"
)

// Credential store keys. These five entries are the only persisted
// session state; everything else is derived per call.
const (
	keyVerifier     = "spotify.code_verifier"
	keyState        = "spotify.oauth_state"
	keyAccessToken  = "spotify.access_token"
	keyTokenExpiry  = "spotify.token_expiry"
	keyRefreshToken = "spotify.refresh_token"
)

// verifierBytes is the entropy of the code verifier. 32 random bytes
// encode to 43 base64url characters, the RFC 7636 minimum length.
const verifierBytes = 32

// Material is the verifier/state/challenge triple for one login attempt.
//
// Created at login start and consumed exactly once by the callback
// handler; never reused across attempts.
type Material struct {
	Verifier  string
	State     string
	Challenge string
}

// PKCE generates and validates proof-key material, persisting it across
// the redirect round trip through a [store.Store].
type PKCE struct {
	store store.Store
}

// NewPKCE creates a PKCE helper backed by the given store.
func NewPKCE(s store.Store) *PKCE {
	return &PKCE{store: s}
}

// Start generates fresh PKCE material and persists the verifier and
// state. Any prior unfinished attempt's material is overwritten: only
// one login attempt may be in flight.
func (p *PKCE) Start() (*Material, error) {
	verifier, err := shared.RandomToken(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := shared.RandomToken(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	if err := p.store.Set(keyVerifier, verifier); err != nil {
		return nil, fmt.Errorf("failed to persist code verifier: %w", err)
	}
	if err := p.store.Set(keyState, state); err != nil {
		return nil, fmt.Errorf("failed to persist oauth state: %w", err)
	}

	return &Material{
		Verifier:  verifier,
		State:     state,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}

// Complete validates the state returned by the authorization server and
// returns the stored verifier for the token exchange.
//
// The stored material is not cleared here: a failed exchange may be
// retried without re-deriving, so callers decide when to purge.
func (p *PKCE) Complete(returnedState string) (string, error) {
	storedState, err := p.store.Get(keyState)
	if err != nil {
		return "", fmt.Errorf("failed to read oauth state: %w", err)
	}

	if returnedState == "" || returnedState != storedState {
		return "", fmt.Errorf("%w: callback state does not match login attempt", shared.ErrStateMismatch)
	}

	verifier, err := p.store.Get(keyVerifier)
	if err != nil {
		return "", fmt.Errorf("failed to read code verifier: %w", err)
	}
	if verifier == "" {
		return "", fmt.Errorf("%w: storage cleared mid-flow", shared.ErrMissingVerifier)
	}

	return verifier, nil
}

// Purge removes the persisted verifier and state.
func (p *PKCE) Purge() error {
	if err := p.store.Delete(keyVerifier); err != nil {
		return err
	}
	return p.store.Delete(keyState)
}
