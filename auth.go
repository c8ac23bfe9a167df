package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelpush/modelpush/internal/authflow"
	"github.com/modelpush/modelpush/internal/config"
	"github.com/modelpush/modelpush/internal/credfile"
	"github.com/modelpush/modelpush/internal/creds"
)

func newLoginCmd() *cobra.Command {
	var (
		flags     creds.Flags
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and cache an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd.Context(), flags, noBrowser)
		},
	}

	cmd.Flags().StringVar(&flags.WorkspaceURL, "workspace", "", "workspace URL")
	cmd.Flags().BoolVar(&flags.Interactive, "interactive", false, "authenticate as a user")
	cmd.Flags().BoolVar(&flags.ServicePrincipal, "service-principal", false, "authenticate as a service principal")
	cmd.Flags().StringVar(&flags.ClientID, "client-id", "", "application (client) id")
	cmd.Flags().StringVar(&flags.ClientSecret, "client-secret", "", "service principal secret")
	cmd.Flags().StringVar(&flags.TenantID, "tenant-id", "", "directory (tenant) id")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "use a device code instead of opening a browser")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached access token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the cached identity and token status",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(ctx context.Context, flags creds.Flags, noBrowser bool) error {
	logger := buildLogger()

	sess, err := newSession(ctx, flags, noBrowser, logger)
	if err != nil {
		return err
	}

	logger.Info("login successful", slog.String("mode", string(sess.Auth.Mode)))

	if sess.Auth.AccountUsername != "" {
		statusf(flagQuiet, "Signed in as %s.\n", sess.Auth.AccountUsername)
	} else {
		statusf(flagQuiet, "Signed in.\n")
	}

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	// Identity mappings survive logout on purpose: they record which
	// workspace items belong to which model, not who may touch them.
	store := credfile.NewStore(config.DefaultDataDir(), logger)
	if err := store.DeleteAuthState(); err != nil {
		return err
	}

	statusf(flagQuiet, "Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Mode         string     `json:"mode,omitempty"`
	WorkspaceURL string     `json:"workspace_url,omitempty"`
	Account      string     `json:"account,omitempty"`
	ClientID     string     `json:"client_id,omitempty"`
	TenantID     string     `json:"tenant_id,omitempty"`
	TokenExpires *time.Time `json:"token_expires,omitempty"`
	TokenUsable  bool       `json:"token_usable"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	store := credfile.NewStore(config.DefaultDataDir(), logger)

	state := store.LoadAuthState()
	if state == nil {
		return errors.New("not signed in: run 'modelpush login' first")
	}

	out := buildWhoamiOutput(state)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	printWhoamiText(out)

	return nil
}

// buildWhoamiOutput projects the cached state into the display schema,
// probing token freshness with the same rule deploys use.
func buildWhoamiOutput(state *creds.CachedAuthState) whoamiOutput {
	probe := &creds.AuthConfig{
		AccessToken:          state.AccessToken,
		AccessTokenExpiresOn: state.AccessTokenExpiresOn,
	}

	out := whoamiOutput{
		Mode:         string(state.Mode),
		WorkspaceURL: state.WorkspaceURL,
		Account:      state.AccountUsername,
		ClientID:     state.ClientID,
		TenantID:     state.TenantID,
		TokenUsable:  (&authflow.Acquirer{}).TokenUsable(probe),
	}

	if !state.AccessTokenExpiresOn.IsZero() {
		expires := state.AccessTokenExpiresOn
		out.TokenExpires = &expires
	}

	return out
}

func printWhoamiText(out whoamiOutput) {
	if out.Mode != "" {
		fmt.Printf("Mode:       %s\n", out.Mode)
	}

	if out.Account != "" {
		fmt.Printf("Account:    %s\n", out.Account)
	}

	if out.WorkspaceURL != "" {
		fmt.Printf("Workspace:  %s\n", out.WorkspaceURL)
	}

	if out.ClientID != "" {
		fmt.Printf("Client ID:  %s\n", out.ClientID)
	}

	if out.TenantID != "" {
		fmt.Printf("Tenant ID:  %s\n", out.TenantID)
	}

	switch {
	case out.TokenExpires == nil && !out.TokenUsable:
		fmt.Printf("Token:      none\n")
	case out.TokenUsable && out.TokenExpires != nil:
		fmt.Printf("Token:      valid until %s\n", formatTime(*out.TokenExpires))
	case out.TokenUsable:
		fmt.Printf("Token:      valid (no recorded expiry)\n")
	default:
		fmt.Printf("Token:      expired %s\n", formatTime(*out.TokenExpires))
	}
}
