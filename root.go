package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/modelpush/modelpush/internal/config"
)

// version is stamped by the release build via ldflags.
var version = "dev"

// Persistent flags shared by every subcommand, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// fileCfg is the config file loaded by the root pre-run. It is the
// lowest-priority credential source; a missing file loads as defaults,
// so subcommands can rely on it being non-nil.
var fileCfg *config.Config

// defaultHTTPClient caps every remote call at 30 seconds so a stalled
// connection cannot hang the CLI.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// newRootCmd assembles the command tree. main() executes it once.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "modelpush",
		Short:   "Deploy semantic models to a workspace",
		Long:    "modelpush publishes a semantic model folder to a remote workspace,\ncreating the target item or updating it in place.",
		Version: version,

		// Errors surface exactly once, in main().
		SilenceErrors: true,
		SilenceUsage:  true,

		// Every command sees the config file. A .env file supplements the
		// process environment for local development and is optional.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			return loadConfig()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "config file path")
	pf.BoolVar(&flagJSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(
		newDeployCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newItemsCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return cmd
}

// loadConfig fills fileCfg from the resolved config path. Only a present
// but unreadable or invalid file fails the load.
func loadConfig() error {
	cfg, err := config.LoadOrDefault(config.ResolvePath(flagConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fileCfg = cfg

	return nil
}

// logLevels maps config log_level values to slog levels.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// buildLogger picks the log level from the config file, letting --verbose
// and then --quiet override it, and logs as text to stderr.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if fileCfg != nil {
		if l, ok := logLevels[fileCfg.LogLevel]; ok {
			level = l
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError reports err on stderr and exits non-zero. Nil is a no-op.
func exitOnError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
