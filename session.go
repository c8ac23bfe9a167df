package main

import (
	"context"
	"log/slog"

	"github.com/modelpush/modelpush/internal/authflow"
	"github.com/modelpush/modelpush/internal/cienv"
	"github.com/modelpush/modelpush/internal/config"
	"github.com/modelpush/modelpush/internal/credfile"
	"github.com/modelpush/modelpush/internal/creds"
	"github.com/modelpush/modelpush/internal/prompt"
	"github.com/modelpush/modelpush/internal/workspace"
)

// Session holds what an authenticated command needs: resolved credentials
// carrying a usable access token, plus the on-disk store they came from.
type Session struct {
	Store *credfile.Store
	Auth  *creds.AuthConfig
}

// newSession resolves credentials from every source, guarantees a usable
// access token, and persists the refreshed state. noBrowser skips the
// browser flow on interactive logins and goes straight to a device code.
func newSession(ctx context.Context, flags creds.Flags, noBrowser bool, logger *slog.Logger) (*Session, error) {
	store := credfile.NewStore(config.DefaultDataDir(), logger)

	resolver := &creds.Resolver{
		Store:     store,
		File:      fileCfg,
		Prompter:  prompt.Terminal{},
		CanPrompt: cienv.IsInteractive(),
		LocalToken: func(ctx context.Context, workspaceURL string) (*creds.LocalToken, error) {
			return authflow.AzureCLIToken(ctx, workspaceURL, nil, logger)
		},
		Logger: logger,
	}

	auth, err := resolver.Resolve(ctx, flags)
	if err != nil {
		return nil, err
	}

	acquirer := &authflow.Acquirer{NoBrowser: noBrowser, Logger: logger}
	if err := acquirer.EnsureToken(ctx, auth); err != nil {
		return nil, err
	}

	// Persisting the refreshed state is best effort; a read-only state dir
	// must not block the command that just authenticated.
	if err := store.SaveAuthState(auth.Redact()); err != nil {
		logger.Warn("could not persist auth state", slog.String("error", err.Error()))
	}

	return &Session{Store: store, Auth: auth}, nil
}

// workspaceClient builds a client bound to the session's workspace and token.
func (s *Session) workspaceClient(logger *slog.Logger) (*workspace.Client, error) {
	return workspace.NewClient(s.Auth.WorkspaceURL, defaultHTTPClient(),
		workspace.StaticToken(s.Auth.AccessToken), logger)
}
