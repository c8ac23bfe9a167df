package creds

import (
	"encoding/json"
	"log/slog"
)

// legacyCredentials is the payload of the legacy combined-JSON environment
// variable. Field names match the original camelCase convention.
type legacyCredentials struct {
	Mode         string `json:"mode"`
	WorkspaceURL string `json:"workspaceUrl"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	TenantID     string `json:"tenantId"`
}

// parseLegacy decodes the legacy variable. The boolean is false on absence
// or parse failure; both collapse to "no contribution" for the merge, but
// malformed content is logged so the distinction stays visible.
func parseLegacy(raw string, logger *slog.Logger) (sourceValues, bool) {
	if raw == "" {
		return sourceValues{}, false
	}

	var lc legacyCredentials
	if err := json.Unmarshal([]byte(raw), &lc); err != nil {
		logger.Info("ignoring malformed legacy credentials variable",
			slog.String("variable", EnvLegacyCredentials),
			slog.String("error", err.Error()),
		)

		return sourceValues{}, false
	}

	src := sourceValues{
		workspaceURL: lc.WorkspaceURL,
		clientID:     lc.ClientID,
		clientSecret: lc.ClientSecret,
		tenantID:     lc.TenantID,
	}

	if mode, ok := ParseMode(lc.Mode); ok {
		src.mode = mode
	} else if lc.Mode != "" {
		logger.Info("ignoring unrecognized mode in legacy credentials variable",
			slog.String("mode", lc.Mode),
		)
	}

	return src, true
}
