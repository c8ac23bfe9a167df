package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelpush/modelpush/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the loaded configuration and resolved paths",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

// configShowOutput is the JSON schema for `config show --json`.
type configShowOutput struct {
	ConfigPath   string `json:"config_path"`
	DataDir      string `json:"data_dir"`
	WorkspaceURL string `json:"workspace_url,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	Mode         string `json:"mode,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	LogLevel     string `json:"log_level,omitempty"`
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if fileCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	out := configShowOutput{
		ConfigPath:   config.ResolvePath(flagConfigPath),
		DataDir:      config.DefaultDataDir(),
		WorkspaceURL: fileCfg.WorkspaceURL,
		TenantID:     fileCfg.TenantID,
		ClientID:     fileCfg.ClientID,
		Mode:         fileCfg.Mode,
		ModelName:    fileCfg.ModelName,
		LogLevel:     fileCfg.LogLevel,
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	printConfigShowText(out)

	return nil
}

func printConfigShowText(out configShowOutput) {
	fmt.Printf("Config file:  %s\n", out.ConfigPath)
	fmt.Printf("Data dir:     %s\n", out.DataDir)

	if out.WorkspaceURL != "" {
		fmt.Printf("Workspace:    %s\n", out.WorkspaceURL)
	}

	if out.Mode != "" {
		fmt.Printf("Mode:         %s\n", out.Mode)
	}

	if out.ModelName != "" {
		fmt.Printf("Model name:   %s\n", out.ModelName)
	}

	if out.ClientID != "" {
		fmt.Printf("Client ID:    %s\n", out.ClientID)
	}

	if out.TenantID != "" {
		fmt.Printf("Tenant ID:    %s\n", out.TenantID)
	}

	if out.LogLevel != "" {
		fmt.Printf("Log level:    %s\n", out.LogLevel)
	}
}
