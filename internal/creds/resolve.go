package creds

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/modelpush/modelpush/internal/config"
)

// Flags holds explicit caller-supplied values from CLI flags. Empty
// fields were not given and never participate in the merge.
type Flags struct {
	WorkspaceURL     string
	ModelName        string
	Interactive      bool
	ServicePrincipal bool
	ClientID         string
	ClientSecret     string
	TenantID         string
}

// StateStore is the credential-store surface the resolver consumes.
// A nil return is a cache miss.
type StateStore interface {
	LoadAuthState() *CachedAuthState
}

// Prompter asks the operator for values no source provided. Only
// consulted when the resolver was built with CanPrompt.
type Prompter interface {
	Input(title, placeholder string) (string, error)
	Secret(title string) (string, error)
	Select(title string, options []string) (string, error)
}

// LocalToken is an access token obtained from a locally installed CLI tool.
type LocalToken struct {
	AccessToken string
	ExpiresOn   time.Time
	Username    string
}

// TokenFallback obtains a LocalToken for the workspace's resource.
// An error means "unavailable" and is never fatal.
type TokenFallback func(ctx context.Context, workspaceURL string) (*LocalToken, error)

// Resolver merges credential sources into one AuthConfig. Nil fields
// disable the corresponding source or capability.
type Resolver struct {
	Store      StateStore
	File       *config.Config
	Getenv     func(string) string
	Prompter   Prompter
	CanPrompt  bool
	LocalToken TokenFallback
	Logger     *slog.Logger
}

// sourceValues is one source's contribution to the merge.
type sourceValues struct {
	mode         Mode
	workspaceURL string
	clientID     string
	clientSecret string
	tenantID     string
	modelName    string
	previousName string
	accessToken  string
	expiresOn    time.Time
	username     string
}

// merge overwrites cfg fields with non-empty values from src. Empty source
// values never clear a field set by a lower-priority source.
func merge(cfg *AuthConfig, src sourceValues) {
	if src.mode != ModeUnset {
		cfg.Mode = src.mode
	}

	if src.workspaceURL != "" {
		cfg.WorkspaceURL = src.workspaceURL
	}

	if src.clientID != "" {
		cfg.ClientID = src.clientID
	}

	if src.clientSecret != "" {
		cfg.ClientSecret = src.clientSecret
	}

	if src.tenantID != "" {
		cfg.TenantID = src.tenantID
	}

	if src.modelName != "" {
		cfg.ModelName = src.modelName
	}

	if src.previousName != "" {
		cfg.PreviousModelName = src.previousName
	}

	if src.accessToken != "" {
		cfg.AccessToken = src.accessToken
	}

	if !src.expiresOn.IsZero() {
		cfg.AccessTokenExpiresOn = src.expiresOn
	}

	if src.username != "" {
		cfg.AccountUsername = src.username
	}
}

// Resolve produces the effective AuthConfig for this invocation.
//
// Source priority, lowest to highest: config file, cached state, discrete
// environment variables, legacy combined-JSON variable, explicit flags.
// After merging, the mode is inferred if still unset, required fields are
// prompted for (interactive) or reported as configuration errors, and a
// local CLI token is tried as a convenience source for interactive mode.
func (r *Resolver) Resolve(ctx context.Context, flags Flags) (*AuthConfig, error) {
	logger := r.logger()

	if flags.Interactive && flags.ServicePrincipal {
		return nil, &ConfigError{Msg: "interactive and service-principal modes requested simultaneously"}
	}

	cfg := &AuthConfig{}

	if r.File != nil {
		merge(cfg, fileSource(r.File))
	}

	if r.Store != nil {
		if state := r.Store.LoadAuthState(); state != nil {
			merge(cfg, state.values())
			logger.Debug("merged cached auth state")
		}
	}

	getenv := r.getenv()

	if src, ok := envSource(getenv); ok {
		merge(cfg, src)
		logger.Debug("merged environment credentials")
	}

	if src, ok := parseLegacy(getenv(EnvLegacyCredentials), logger); ok {
		merge(cfg, src)
		logger.Debug("merged legacy credentials variable")
	}

	applyFlags(cfg, flags)

	if err := r.inferMode(cfg); err != nil {
		return nil, err
	}

	if err := r.fillRequired(cfg); err != nil {
		return nil, err
	}

	cfg.WorkspaceURL = strings.TrimRight(cfg.WorkspaceURL, "/")

	r.localTokenFallback(ctx, cfg)

	logger.Debug("credentials resolved",
		slog.String("mode", string(cfg.Mode)),
		slog.String("workspace_url", cfg.WorkspaceURL),
		slog.Bool("has_token", cfg.AccessToken != ""),
	)

	return cfg, nil
}

// fileSource adapts the parsed config file to a merge source. The mode
// string was already validated at file-parse time.
func fileSource(file *config.Config) sourceValues {
	src := sourceValues{
		workspaceURL: file.WorkspaceURL,
		clientID:     file.ClientID,
		tenantID:     file.TenantID,
		modelName:    file.ModelName,
	}

	if mode, ok := ParseMode(file.Mode); ok {
		src.mode = mode
	}

	return src
}

// applyFlags merges explicit flag values. A model-name override records
// the previously resolved name first, enabling rename detection later.
func applyFlags(cfg *AuthConfig, flags Flags) {
	if flags.ModelName != "" && cfg.ModelName != "" {
		cfg.PreviousModelName = cfg.ModelName
	}

	src := sourceValues{
		workspaceURL: flags.WorkspaceURL,
		clientID:     flags.ClientID,
		clientSecret: flags.ClientSecret,
		tenantID:     flags.TenantID,
		modelName:    flags.ModelName,
	}

	switch {
	case flags.ServicePrincipal:
		src.mode = ModeServicePrincipal
	case flags.Interactive:
		src.mode = ModeInteractive
	}

	merge(cfg, src)
}

// inferMode settles the mode when no source specified one: service
// principal if client id and tenant are both present, otherwise
// interactive, prompting only when the session allows it.
func (r *Resolver) inferMode(cfg *AuthConfig) error {
	if cfg.Mode != ModeUnset {
		return nil
	}

	if cfg.ClientID != "" && cfg.TenantID != "" {
		cfg.Mode = ModeServicePrincipal
		return nil
	}

	if !r.CanPrompt {
		cfg.Mode = ModeInteractive
		return nil
	}

	choice, err := r.Prompter.Select("Authentication mode",
		[]string{string(ModeInteractive), string(ModeServicePrincipal)})
	if err != nil {
		return &ConfigError{Msg: "selecting authentication mode: " + err.Error()}
	}

	mode, ok := ParseMode(choice)
	if !ok {
		return &ConfigError{Msg: fmt.Sprintf("unrecognized authentication mode %q", choice)}
	}

	cfg.Mode = mode

	return nil
}

// fillRequired enforces the fields a deploy cannot proceed without.
// Interactive sessions are prompted for gaps; otherwise a gap is a
// configuration error, never a hang waiting for input.
func (r *Resolver) fillRequired(cfg *AuthConfig) error {
	if cfg.WorkspaceURL == "" {
		value, err := r.promptValue("Workspace URL", "https://host/v1/workspaces/<id>",
			"workspace URL is required (use --workspace, "+EnvWorkspaceURL+", or workspace_url in the config file)")
		if err != nil {
			return err
		}

		cfg.WorkspaceURL = value
	}

	if cfg.Mode != ModeServicePrincipal {
		return nil
	}

	if cfg.ClientID == "" {
		value, err := r.promptValue("Client ID", "",
			"client id is required for service-principal mode (use --client-id or "+EnvClientID+")")
		if err != nil {
			return err
		}

		cfg.ClientID = value
	}

	if cfg.TenantID == "" {
		value, err := r.promptValue("Tenant ID", "",
			"tenant id is required for service-principal mode (use --tenant-id or "+EnvTenantID+")")
		if err != nil {
			return err
		}

		cfg.TenantID = value
	}

	if cfg.ClientSecret == "" {
		if !r.CanPrompt {
			return &ConfigError{Msg: "client secret is required for service-principal mode (use --client-secret or " + EnvClientSecret + ")"}
		}

		secret, err := r.Prompter.Secret("Client secret")
		if err != nil || secret == "" {
			return &ConfigError{Msg: "client secret is required for service-principal mode"}
		}

		cfg.ClientSecret = secret
	}

	return nil
}

// promptValue asks for a missing required value, or fails with missingMsg
// when prompting is unavailable or yields nothing.
func (r *Resolver) promptValue(title, placeholder, missingMsg string) (string, error) {
	if !r.CanPrompt {
		return "", &ConfigError{Msg: missingMsg}
	}

	value, err := r.Prompter.Input(title, placeholder)
	if err != nil || strings.TrimSpace(value) == "" {
		return "", &ConfigError{Msg: missingMsg}
	}

	return strings.TrimSpace(value), nil
}

// localTokenFallback tries a locally installed CLI tool for a token when
// interactive mode has none. Best-effort: failure falls through to the
// explicit login flows.
func (r *Resolver) localTokenFallback(ctx context.Context, cfg *AuthConfig) {
	if r.LocalToken == nil || cfg.Mode != ModeInteractive || cfg.AccessToken != "" {
		return
	}

	lt, err := r.LocalToken(ctx, cfg.WorkspaceURL)
	if err != nil {
		r.logger().Debug("local CLI token unavailable", slog.String("error", err.Error()))
		return
	}

	cfg.AccessToken = lt.AccessToken
	cfg.AccessTokenExpiresOn = lt.ExpiresOn

	if lt.Username != "" {
		cfg.AccountUsername = lt.Username
	}

	r.logger().Info("using access token from local CLI tool",
		slog.Time("expires_on", lt.ExpiresOn),
	)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

func (r *Resolver) getenv() func(string) string {
	if r.Getenv != nil {
		return r.Getenv
	}

	return os.Getenv
}
