// Package authflow acquires bearer tokens for resolved credentials. Three
// flows are supported: client-credential exchange for service principals,
// browser-based authorization code + PKCE, and device code as the
// interactive fallback. A cached token that is still comfortably fresh is
// reused without any network traffic.
package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/modelpush/modelpush/internal/cienv"
	"github.com/modelpush/modelpush/internal/creds"
)

// freshnessBuffer is the safety margin a cached token's expiry must clear
// to be reused without a new acquisition.
const freshnessBuffer = 5 * time.Minute

// defaultPublicClientID is the public client registration used by the
// interactive flows. Overridable for sovereign clouds and tests.
const defaultPublicClientID = "7f1b9a6e-4c2d-4a08-9b34-5ae0c5f8d213"

// defaultTenant admits any work or school account when no tenant was
// resolved for interactive sign-in.
const defaultTenant = "organizations"

// DeviceAuth holds the device-code fields shown to the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Acquirer obtains tokens and writes them back into the AuthConfig. The
// zero value uses production behavior; tests inject endpoints, clocks, and
// CI detection.
type Acquirer struct {
	ClientID  string // public client id for interactive flows
	NoBrowser bool   // skip the browser flow, go straight to device code

	OpenURL  func(string) error
	Display  func(DeviceAuth)
	Endpoint func(tenant string) oauth2.Endpoint
	IsCI     func() bool
	Now      func() time.Time
	Logger   *slog.Logger
}

// EnsureToken guarantees cfg carries a usable bearer token, acquiring one
// when the cached token is missing or expiring. On the service-principal
// path the client secret is cleared from cfg before return, success or
// failure.
func (a *Acquirer) EnsureToken(ctx context.Context, cfg *creds.AuthConfig) error {
	if a.TokenUsable(cfg) {
		a.logger().Debug("reusing cached token",
			slog.Time("expires_on", cfg.AccessTokenExpiresOn))
		return nil
	}

	switch cfg.Mode {
	case creds.ModeServicePrincipal:
		return a.acquireServicePrincipal(ctx, cfg)
	case creds.ModeInteractive:
		return a.acquireInteractive(ctx, cfg)
	default:
		return &AuthError{Flow: "dispatch", Err: fmt.Errorf("no flow for mode %q", cfg.Mode)}
	}
}

// TokenUsable reports whether the cached token can be reused: it must be
// non-empty, and either carry no recorded expiry or expire more than the
// freshness buffer in the future.
func (a *Acquirer) TokenUsable(cfg *creds.AuthConfig) bool {
	if cfg.AccessToken == "" {
		return false
	}

	if cfg.AccessTokenExpiresOn.IsZero() {
		return true
	}

	return cfg.AccessTokenExpiresOn.After(a.now().Add(freshnessBuffer))
}

// acquireInteractive runs the browser flow unless suppressed, falling back
// to device code. Refused outright in CI before any network traffic.
func (a *Acquirer) acquireInteractive(ctx context.Context, cfg *creds.AuthConfig) error {
	if a.isCI() {
		return &AuthError{Flow: "interactive", Err: ErrCIRestricted}
	}

	oc, err := a.oauthConfig(cfg)
	if err != nil {
		return &AuthError{Flow: "interactive", Err: err}
	}

	if !a.NoBrowser {
		tok, browserErr := a.loginBrowser(ctx, oc)
		if browserErr == nil {
			applyToken(cfg, tok)
			return nil
		}

		a.logger().Warn("browser sign-in failed, falling back to device code",
			slog.String("error", browserErr.Error()))
	}

	tok, err := a.loginDeviceCode(ctx, oc)
	if err != nil {
		return &AuthError{Flow: "device-code", Err: err}
	}

	applyToken(cfg, tok)

	return nil
}

// oauthConfig builds the oauth2 config for the interactive flows, scoped
// to the workspace's resource.
func (a *Acquirer) oauthConfig(cfg *creds.AuthConfig) (*oauth2.Config, error) {
	scope, err := scopeFor(cfg.WorkspaceURL)
	if err != nil {
		return nil, err
	}

	tenant := cfg.TenantID
	if tenant == "" {
		tenant = defaultTenant
	}

	return &oauth2.Config{
		ClientID: a.clientID(),
		Scopes:   []string{"offline_access", scope},
		Endpoint: a.endpoint(tenant),
	}, nil
}

// applyToken writes the acquired token into the config, deriving the
// account username from the token claims when present.
func applyToken(cfg *creds.AuthConfig, tok *oauth2.Token) {
	cfg.AccessToken = tok.AccessToken
	cfg.AccessTokenExpiresOn = tok.Expiry

	if username := usernameFromToken(tok.AccessToken); username != "" {
		cfg.AccountUsername = username
	}
}

// resourceFor derives the token resource (origin) from the workspace URL.
func resourceFor(workspaceURL string) (string, error) {
	u, err := url.Parse(workspaceURL)
	if err != nil {
		return "", fmt.Errorf("parsing workspace URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("workspace URL %q has no usable origin", workspaceURL)
	}

	return u.Scheme + "://" + u.Host, nil
}

// scopeFor is the resource with the default-scope suffix the authorization
// server expects.
func scopeFor(workspaceURL string) (string, error) {
	resource, err := resourceFor(workspaceURL)
	if err != nil {
		return "", err
	}

	return resource + "/.default", nil
}

func (a *Acquirer) clientID() string {
	if a.ClientID != "" {
		return a.ClientID
	}

	return defaultPublicClientID
}

func (a *Acquirer) endpoint(tenant string) oauth2.Endpoint {
	if a.Endpoint != nil {
		return a.Endpoint(tenant)
	}

	return microsoft.AzureADEndpoint(tenant)
}

func (a *Acquirer) isCI() bool {
	if a.IsCI != nil {
		return a.IsCI()
	}

	return cienv.IsCI()
}

func (a *Acquirer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}

	return time.Now()
}

func (a *Acquirer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}

	return slog.Default()
}
