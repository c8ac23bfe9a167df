// Package creds resolves the effective deployment credentials for one
// invocation by merging config file, cached state, environment variables,
// and explicit CLI flags in strictly increasing priority. The resolved
// AuthConfig is the single input for token acquisition and reconciliation.
package creds

import "time"

// Mode selects the authentication flow family.
type Mode string

// Authentication modes. ModeUnset means no source specified one; the
// resolver infers or prompts before returning.
const (
	ModeUnset            Mode = ""
	ModeInteractive      Mode = "interactive"
	ModeServicePrincipal Mode = "service-principal"
)

// ParseMode converts a string from a config source into a Mode.
// Unrecognized values are reported so malformed sources degrade to unset
// instead of smuggling arbitrary strings into the flow dispatch.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeInteractive:
		return ModeInteractive, true
	case ModeServicePrincipal:
		return ModeServicePrincipal, true
	default:
		return ModeUnset, false
	}
}

// AuthConfig is the effective in-memory configuration for one invocation.
// Constructed by the Resolver, token fields filled by the token acquirer,
// name fields updated after reconciliation.
//
// ClientSecret is required only at token-acquisition time and is cleared
// from the struct immediately after the exchange. It is never persisted
// and never logged.
type AuthConfig struct {
	Mode                 Mode
	WorkspaceURL         string
	AccessToken          string
	AccessTokenExpiresOn time.Time // zero = no recorded expiry
	AccountUsername      string
	ModelName            string
	PreviousModelName    string
	ClientID             string
	ClientSecret         string
	TenantID             string
}

// CachedAuthState is the on-disk projection of AuthConfig. The client
// secret has no corresponding field, so round-tripping through the store
// can never reintroduce one.
type CachedAuthState struct {
	Mode                 Mode      `json:"mode,omitempty"`
	WorkspaceURL         string    `json:"workspace_url,omitempty"`
	AccessToken          string    `json:"access_token,omitempty"`
	AccessTokenExpiresOn time.Time `json:"access_token_expires_on"`
	AccountUsername      string    `json:"account_username,omitempty"`
	ModelName            string    `json:"model_name,omitempty"`
	PreviousModelName    string    `json:"previous_model_name,omitempty"`
	ClientID             string    `json:"client_id,omitempty"`
	TenantID             string    `json:"tenant_id,omitempty"`
}

// Redact returns the persistable projection of the config.
func (c *AuthConfig) Redact() CachedAuthState {
	return CachedAuthState{
		Mode:                 c.Mode,
		WorkspaceURL:         c.WorkspaceURL,
		AccessToken:          c.AccessToken,
		AccessTokenExpiresOn: c.AccessTokenExpiresOn,
		AccountUsername:      c.AccountUsername,
		ModelName:            c.ModelName,
		PreviousModelName:    c.PreviousModelName,
		ClientID:             c.ClientID,
		TenantID:             c.TenantID,
	}
}

// values returns the cached state as a merge source.
func (s *CachedAuthState) values() sourceValues {
	return sourceValues{
		mode:         s.Mode,
		workspaceURL: s.WorkspaceURL,
		accessToken:  s.AccessToken,
		expiresOn:    s.AccessTokenExpiresOn,
		username:     s.AccountUsername,
		modelName:    s.ModelName,
		previousName: s.PreviousModelName,
		clientID:     s.ClientID,
		tenantID:     s.TenantID,
	}
}
