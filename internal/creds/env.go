package creds

// Environment variable names for the discrete credential source.
const (
	EnvWorkspaceURL = "MODELPUSH_WORKSPACE_URL"
	EnvClientID     = "MODELPUSH_CLIENT_ID"
	EnvClientSecret = "MODELPUSH_CLIENT_SECRET"
	EnvTenantID     = "MODELPUSH_TENANT_ID"
)

// EnvLegacyCredentials is the legacy combined-JSON variable, kept for
// pipelines configured before the discrete variables existed.
const EnvLegacyCredentials = "MODELPUSH_CREDENTIALS"

// envSource reads the discrete credential variables. The source is
// considered present when any one variable is non-empty; its mode is
// inferred as service-principal when client id and tenant are both set,
// interactive otherwise.
func envSource(getenv func(string) string) (sourceValues, bool) {
	src := sourceValues{
		workspaceURL: getenv(EnvWorkspaceURL),
		clientID:     getenv(EnvClientID),
		clientSecret: getenv(EnvClientSecret),
		tenantID:     getenv(EnvTenantID),
	}

	if src.workspaceURL == "" && src.clientID == "" && src.clientSecret == "" && src.tenantID == "" {
		return sourceValues{}, false
	}

	if src.clientID != "" && src.tenantID != "" {
		src.mode = ModeServicePrincipal
	} else {
		src.mode = ModeInteractive
	}

	return src, true
}
