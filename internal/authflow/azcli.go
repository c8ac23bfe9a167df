package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/modelpush/modelpush/internal/creds"
)

// azTokenResponse is the shape of `az account get-access-token` output.
type azTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresOn   string `json:"expiresOn"`
}

// CommandRunner executes a command and returns its stdout. Injected so
// tests never shell out.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// AzureCLIToken asks a locally installed Azure CLI for an access token
// scoped to the workspace's resource. An error means the CLI is missing or
// not signed in; callers treat that as "unavailable", never fatal.
func AzureCLIToken(ctx context.Context, workspaceURL string, runner CommandRunner, logger *slog.Logger) (*creds.LocalToken, error) {
	resource, err := resourceFor(workspaceURL)
	if err != nil {
		return nil, fmt.Errorf("authflow: %w", err)
	}

	if runner == nil {
		runner = runCommand
	}

	out, err := runner(ctx, "az", "account", "get-access-token",
		"--resource", resource, "--output", "json")
	if err != nil {
		return nil, fmt.Errorf("authflow: az cli token lookup failed: %w", err)
	}

	var resp azTokenResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("authflow: decoding az cli output: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, errors.New("authflow: az cli returned no token")
	}

	lt := &creds.LocalToken{
		AccessToken: resp.AccessToken,
		ExpiresOn:   parseAzExpiry(resp.ExpiresOn),
	}

	if claims, claimsErr := parseClaims(resp.AccessToken); claimsErr == nil {
		lt.Username = claims.username()

		if lt.ExpiresOn.IsZero() && claims.Exp > 0 {
			lt.ExpiresOn = time.Unix(claims.Exp, 0)
		}
	}

	logger.Info("obtained access token from az cli",
		slog.Time("expires_on", lt.ExpiresOn))

	return lt, nil
}

// parseAzExpiry accepts the CLI's local-time format plus the ISO variants
// seen across CLI versions. Unparseable input yields a zero time, which
// reads as "no recorded expiry".
func parseAzExpiry(s string) time.Time {
	formats := []string{
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}

	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t
		}
	}

	return time.Time{}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
