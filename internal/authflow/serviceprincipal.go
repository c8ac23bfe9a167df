package authflow

import (
	"context"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/modelpush/modelpush/internal/creds"
)

// acquireServicePrincipal exchanges the client credentials for a token
// scoped to the workspace's resource. The secret exists for this one
// exchange and is cleared from cfg on the way out, success or failure.
// A failed exchange is surfaced immediately, never retried.
func (a *Acquirer) acquireServicePrincipal(ctx context.Context, cfg *creds.AuthConfig) error {
	defer func() { cfg.ClientSecret = "" }()

	scope, err := scopeFor(cfg.WorkspaceURL)
	if err != nil {
		return &AuthError{Flow: "service-principal", Err: err}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     a.endpoint(cfg.TenantID).TokenURL,
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	a.logger().Info("acquiring service-principal token",
		slog.String("client_id", cfg.ClientID),
		slog.String("tenant_id", cfg.TenantID),
	)

	tok, err := cc.Token(ctx)
	if err != nil {
		return &AuthError{Flow: "service-principal", Err: err}
	}

	applyToken(cfg, tok)

	// Client-credential tokens carry no user identity; the client id is
	// the closest thing to an account name.
	if cfg.AccountUsername == "" {
		cfg.AccountUsername = cfg.ClientID
	}

	a.logger().Info("service-principal token acquired",
		slog.Time("expires_on", tok.Expiry))

	return nil
}
