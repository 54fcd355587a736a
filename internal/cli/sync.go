package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ballee/dbsync/internal/config"
	"github.com/ballee/dbsync/internal/db"
	"github.com/ballee/dbsync/internal/envs"
	"github.com/ballee/dbsync/internal/logger"
	"github.com/ballee/dbsync/internal/models"
	"github.com/ballee/dbsync/internal/secrets"
	"github.com/ballee/dbsync/internal/sync"
)

var syncFlags struct {
	source      string
	target      string
	confirm     bool
	yes         bool
	includeAuth bool
	skipAuth    bool
	format      string
	debug       bool
	jsonLog     bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync data from a source environment into an unprotected target",
	Long: `Runs the full pipeline: resolve credentials, verify the target's
identity against its descriptor, confirm intent, export a snapshot from
the source, reset the target, restore in dependency order, and reconcile
row counts.

Destructive phases run only with --confirm plus either --yes or the
typed confirmation phrase.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFlags.source, "source", envs.Staging, "Source environment ID")
	syncCmd.Flags().StringVar(&syncFlags.target, "target", envs.Local, "Target environment ID")
	syncCmd.Flags().BoolVar(&syncFlags.confirm, "confirm", false, "Proceed past the dry run (destructive)")
	syncCmd.Flags().BoolVarP(&syncFlags.yes, "yes", "y", false, "Skip the interactive phrase confirmation")
	syncCmd.Flags().BoolVar(&syncFlags.includeAuth, "include-auth", true, "Sync the auth/identity schema")
	syncCmd.Flags().BoolVar(&syncFlags.skipAuth, "skip-auth", false, "Do not sync the auth/identity schema")
	syncCmd.Flags().StringVar(&syncFlags.format, "format", "text", "Report format (text, json)")
	syncCmd.Flags().BoolVar(&syncFlags.debug, "debug", false, "Enable debug logging")
	syncCmd.Flags().BoolVar(&syncFlags.jsonLog, "json-log", false, "Log in JSON format")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(syncFlags.debug || cfg.Debug, syncFlags.jsonLog || cfg.JSONLog); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	sourceEnv, ok := envs.Lookup(syncFlags.source)
	if !ok {
		return fmt.Errorf("unknown source environment '%s' (use 'dbsync environments')", syncFlags.source)
	}
	targetEnv, ok := envs.Lookup(syncFlags.target)
	if !ok {
		return fmt.Errorf("unknown target environment '%s' (use 'dbsync environments')", syncFlags.target)
	}
	sourceEnv = cfg.Apply(sourceEnv)
	targetEnv = cfg.Apply(targetEnv)

	// Declared-target check runs before any connection is opened for
	// writing; no flag combination gets past it.
	if err := sync.CheckTarget(targetEnv); err != nil {
		return err
	}

	includeAuth := syncFlags.includeAuth && !syncFlags.skipAuth

	// Cancellation via signal unwinds through the phases; the deferred
	// cleanups below remove all temp artifacts on every exit path.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := secrets.NewResolver(cfg.CredentialsFile)
	sourcePass, err := resolver.Resolve(sourceEnv)
	if err != nil {
		return err
	}
	targetPass, err := resolver.Resolve(targetEnv)
	if err != nil {
		return err
	}

	sourceDB, err := db.Open(sourceEnv, sourcePass)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	targetDB, err := db.Open(targetEnv, targetPass)
	if err != nil {
		return err
	}
	defer targetDB.Close()

	specs := envs.DefaultTables()
	if includeAuth {
		specs = append([]models.TableSpec{envs.AuthTable()}, specs...)
	}

	catalog := db.NewCatalog(targetDB)
	tables, err := catalog.Describe(ctx, specs)
	if err != nil {
		return err
	}

	job, err := sync.NewJob(sourceEnv, targetEnv, tables, includeAuth)
	if err != nil {
		return err
	}

	workdir, err := sync.NewWorkdir()
	if err != nil {
		return err
	}
	defer workdir.Cleanup()

	targetConn, err := targetDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire target session: %w", err)
	}
	defer targetConn.Close()

	builder := db.NewBuilder(tables)

	schemas := []string{"public"}
	if includeAuth {
		schemas = append(schemas, "auth")
	}

	orch := &sync.Orchestrator{
		Job:         job,
		ConfirmFlag: syncFlags.confirm,
		YesFlag:     syncFlags.yes,
		Guard: &sync.TargetGuard{
			Guard: sync.NewGuard(),
			Conn:  targetDB,
			Env:   targetEnv,
		},
		Exporter: &sync.Exporter{
			Bin:      cfg.DumpBin,
			Source:   sourceEnv,
			Password: sourcePass,
			Schemas:  schemas,
			Exclude:  envs.ExcludedTables(),
			Workdir:  workdir,
		},
		Resetter: sync.NewResetter(targetConn, builder),
		Restorer: &sync.Restorer{
			Strategies: []sync.RestoreStrategy{
				&sync.BulkLoad{Bin: cfg.RestoreBin, Target: targetEnv, Password: targetPass},
				&sync.CopyTable{
					Source:    sourceDB,
					SourceCat: db.NewCatalog(sourceDB),
					Target:    targetConn,
					Stmts:     builder,
					Workdir:   workdir,
				},
				&sync.InsertRows{Source: sourceDB, Target: targetConn, Stmts: builder},
			},
		},
		Verifier: &sync.Verifier{
			Source: &sync.RowCounter{Q: sourceDB, Stmts: builder},
			Target: &sync.RowCounter{Q: targetDB, Stmts: builder},
		},
	}

	result, runErr := orch.Run(ctx)
	if result != nil {
		var report string
		if syncFlags.format == "json" {
			report, err = sync.FormatSyncResultJSON(result)
			if err != nil {
				return err
			}
		} else {
			report = sync.FormatSyncResult(result)
		}
		fmt.Println(report)
	}

	logger.Log.Info("job finished", zap.String("state", string(orch.State())))
	return runErr
}
