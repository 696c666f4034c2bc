package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/chorus/internal/server"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the full authorization-code-with-PKCE flow.
//
// Starts a loopback HTTP server for the redirect callback, opens the
// browser for user authorization, and waits for the session manager to
// complete the exchange.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	spotifyCfg := config.Credentials.Spotify

	if spotifyCfg.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id must be set in config.toml", shared.ErrMissingConfig)
	}

	sessions := r.sessions(config)

	callbackHandler := server.NewCallbackHandler(sessions, spotifyCfg)
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(callbackHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	authURL, err := sessions.BeginLogin(spotifyCfg)
	if err != nil {
		return err
	}
	r.writePlain("If the browser did not open, visit:\n%s\n\n", authURL)

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.CallbackResult

	select {
	case result = <-callbackHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return fmt.Errorf("%w: callback server: %v", shared.ErrServiceUnavailable, err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: chorus library sync\n")

	return nil
}

// AuthStatus reports the stored session state without touching the network.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	sessions := r.sessions(config)

	status, err := sessions.SessionStatus()
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	if !status.HasAccessToken && !status.HasRefreshToken {
		return r.writePlain("✗ Not authenticated. Run 'chorus auth login' first.\n")
	}

	r.writePlain("✓ Session stored\n")
	if !status.ExpiresAt.IsZero() {
		if time.Now().Before(status.ExpiresAt) {
			r.writePlain("Access token valid until %s\n", status.ExpiresAt.Format(time.RFC1123))
		} else {
			r.writePlain("Access token expired at %s\n", status.ExpiresAt.Format(time.RFC1123))
		}
	}
	if status.HasRefreshToken {
		r.writePlain("Refresh token: present (expired tokens renew silently)\n")
	} else {
		r.writePlain("Refresh token: absent (re-login required after expiry)\n")
	}

	return nil
}

// AuthLogout clears all persisted session and PKCE material.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	sessions := r.sessions(config)

	if err := sessions.SignOut(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	r.logger.Info("session cleared")
	return r.writePlain("✓ Signed out\n")
}

// authCommand handles login, status, and logout.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize via the browser (PKCE flow)",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored session state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Clear the stored session",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}
