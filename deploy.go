package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/modelpush/modelpush/internal/cienv"
	"github.com/modelpush/modelpush/internal/config"
	"github.com/modelpush/modelpush/internal/credfile"
	"github.com/modelpush/modelpush/internal/creds"
	"github.com/modelpush/modelpush/internal/history"
	"github.com/modelpush/modelpush/internal/identity"
	"github.com/modelpush/modelpush/internal/model"
	"github.com/modelpush/modelpush/internal/prompt"
	"github.com/modelpush/modelpush/internal/reconcile"
	"github.com/modelpush/modelpush/internal/workspace"
)

// watchDebounce is how long the watcher waits after the last filesystem
// event before redeploying. Editors save in bursts; one deploy per burst.
const watchDebounce = 500 * time.Millisecond

// historyFileName is the deployment ledger, kept next to the auth state.
const historyFileName = "history.db"

type deployOptions struct {
	dir       string
	flags     creds.Flags
	noBrowser bool
	watch     bool
}

func newDeployCmd() *cobra.Command {
	var opts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy [model-dir]",
		Short: "Deploy a semantic model folder to the workspace",
		Long: `Deploy publishes a semantic model folder to the remote workspace.

The target item is located by its platform logical id when possible and by
display name otherwise. A matching item is updated in place (renamed first
when its current name differs); when nothing matches, a new item is created.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dir = "."
			if len(args) == 1 {
				opts.dir = args[0]
			}

			return runDeploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.flags.WorkspaceURL, "workspace", "", "workspace URL")
	cmd.Flags().StringVar(&opts.flags.ModelName, "name", "", "model display name in the workspace")
	cmd.Flags().BoolVar(&opts.flags.Interactive, "interactive", false, "authenticate as a user")
	cmd.Flags().BoolVar(&opts.flags.ServicePrincipal, "service-principal", false, "authenticate as a service principal")
	cmd.Flags().StringVar(&opts.flags.ClientID, "client-id", "", "application (client) id")
	cmd.Flags().StringVar(&opts.flags.ClientSecret, "client-secret", "", "service principal secret")
	cmd.Flags().StringVar(&opts.flags.TenantID, "tenant-id", "", "directory (tenant) id")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "use a device code instead of opening a browser")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "redeploy on file changes until interrupted")

	return cmd
}

func runDeploy(ctx context.Context, opts deployOptions) error {
	logger := buildLogger()

	// Validate the model folder before any authentication happens, so a
	// typoed path never triggers a browser round trip.
	mdl, err := model.Read(opts.dir, logger)
	if err != nil {
		return err
	}

	sess, err := newSession(ctx, opts.flags, opts.noBrowser, logger)
	if err != nil {
		return err
	}

	client, err := sess.workspaceClient(logger)
	if err != nil {
		return err
	}

	ledger := openLedger(logger)
	if ledger != nil {
		defer ledger.Close()
	}

	if opts.watch {
		release, lockErr := acquireWatchLock(config.DefaultDataDir())
		if lockErr != nil {
			return lockErr
		}
		defer release()

		return watchAndDeploy(shutdownContext(ctx, logger), opts.dir, sess, client, ledger, logger)
	}

	res, err := deployOnce(ctx, mdl, sess, client, ledger, logger)
	if err != nil {
		return err
	}

	return printDeployResult(res)
}

// deployOnce runs a single reconcile pass: build the definition, deploy it,
// record the outcome, and remember the final name for the next run.
func deployOnce(ctx context.Context, mdl *model.Model, sess *Session, client *workspace.Client,
	ledger *history.Ledger, logger *slog.Logger,
) (*reconcile.Result, error) {
	def, err := model.BuildDefinition(ctx, mdl.Root, logger)
	if err != nil {
		return nil, err
	}

	rec := &reconcile.Reconciler{
		Registry:  client,
		Mapper:    &identity.Mapper{Store: sess.Store, Logger: logger},
		Prompter:  prompt.Terminal{},
		CanPrompt: cienv.IsInteractive(),
		Logger:    logger,
	}

	in := reconcile.Input{
		WorkspaceID:  client.WorkspaceID,
		LogicalID:    mdl.LogicalID,
		ResolvedName: sess.Auth.ModelName,
		PreviousName: sess.Auth.PreviousModelName,
		PlatformName: mdl.PlatformName,
		DeclaredName: mdl.DeclaredName,
		Definition:   def,
	}

	res, err := rec.Deploy(ctx, in)
	recordDeploy(ctx, ledger, client.WorkspaceID, res, err, logger)

	if err != nil {
		return nil, err
	}

	rememberModelName(sess, res.Name, logger)

	return res, nil
}

// rememberModelName persists the deployed name so the next run can offer it
// as the previous-name rename candidate. Best effort.
func rememberModelName(sess *Session, name string, logger *slog.Logger) {
	if name == "" || name == sess.Auth.ModelName {
		return
	}

	sess.Auth.ModelName = name

	if err := sess.Store.SaveAuthState(sess.Auth.Redact()); err != nil {
		logger.Warn("could not persist deployed model name", slog.String("error", err.Error()))
	}
}

// openLedger opens the deployment ledger. The ledger is advisory: any
// failure downgrades to a warning and the deploy proceeds without history.
func openLedger(logger *slog.Logger) *history.Ledger {
	dataDir := config.DefaultDataDir()
	if dataDir == "" {
		return nil
	}

	if err := os.MkdirAll(dataDir, credfile.DirPerms); err != nil {
		logger.Warn("could not create data dir for deployment history", slog.String("error", err.Error()))
		return nil
	}

	ledger, err := history.Open(filepath.Join(dataDir, historyFileName), logger)
	if err != nil {
		logger.Warn("could not open deployment history", slog.String("error", err.Error()))
		return nil
	}

	return ledger
}

// recordDeploy appends the outcome to the ledger. Never fatal.
func recordDeploy(ctx context.Context, ledger *history.Ledger, workspaceID string,
	res *reconcile.Result, deployErr error, logger *slog.Logger,
) {
	if ledger == nil {
		return
	}

	entry := history.Entry{
		WorkspaceID: workspaceID,
		Success:     deployErr == nil,
	}

	switch {
	case res != nil:
		entry.ItemID = res.ItemID
		entry.Name = res.Name
		entry.Action = string(res.Action)
		entry.Message = res.Message
	case deployErr != nil:
		entry.Message = deployErr.Error()
	}

	if err := ledger.Record(ctx, entry); err != nil {
		logger.Warn("could not record deployment", slog.String("error", err.Error()))
	}
}

func printDeployResult(res *reconcile.Result) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(res)
	}

	if res.ItemID != "" {
		printSuccess("%s (item %s)", res.Message, res.ItemID)
	} else {
		printSuccess("%s", res.Message)
	}

	return nil
}

// watchAndDeploy deploys once, then redeploys after every quiet period
// following filesystem changes. Cycle failures warn and keep watching;
// only watcher setup errors and cancellation end the loop.
func watchAndDeploy(ctx context.Context, dir string, sess *Session, client *workspace.Client,
	ledger *history.Ledger, logger *slog.Logger,
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchesRecursive(watcher, dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	if err := deployCycle(ctx, dir, sess, client, ledger, logger); err != nil {
		return err
	}

	statusf(flagQuiet, "Watching %s for changes. Press Ctrl-C to stop.\n", dir)

	timer := time.NewTimer(watchDebounce)
	timer.Stop() // idle until the first event
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Mode changes do not affect the definition.
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			// New directories must be watched before files land in them.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := addWatchesRecursive(watcher, event.Name); addErr != nil {
						logger.Warn("could not watch new directory",
							slog.String("path", event.Name), slog.String("error", addErr.Error()))
					}
				}
			}

			logger.Debug("filesystem change",
				slog.String("path", event.Name), slog.String("op", event.Op.String()))
			timer.Reset(watchDebounce)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("filesystem watcher error", slog.String("error", watchErr.Error()))

		case <-timer.C:
			if err := deployCycle(ctx, dir, sess, client, ledger, logger); err != nil {
				if ctx.Err() != nil {
					return nil
				}

				printWarning("deploy failed: %v", err)
			}
		}
	}
}

// deployCycle re-reads the model folder and deploys it. The folder is read
// fresh each cycle because the platform sidecar and declared name can
// change between deploys.
func deployCycle(ctx context.Context, dir string, sess *Session, client *workspace.Client,
	ledger *history.Ledger, logger *slog.Logger,
) error {
	mdl, err := model.Read(dir, logger)
	if err != nil {
		return err
	}

	res, err := deployOnce(ctx, mdl, sess, client, ledger, logger)
	if err != nil {
		return err
	}

	return printDeployResult(res)
}

// addWatchesRecursive registers dir and every subdirectory. Dot directories
// are skipped; the definition scan ignores them anyway.
func addWatchesRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return fs.SkipDir
		}

		return watcher.Add(path)
	})
}
