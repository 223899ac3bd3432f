package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/occhealth/pcmso-backend/internal/app"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
)

var cfgFile string

func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pcmsoctl",
		Short: "pcmsoctl operates the PCMSO exam rule and versioning engine",
		Long: `pcmsoctl runs engine operations directly against the database configured
for the PCMSO service: consolidation of exam requirements, change detection,
draft generation, signing, version diffs, NR-7 compliance checks and XLSX export.

Configuration is read from the same environment variables as the service
(DB_DRIVER, SQLITE_PATH, POSTGRES_*, REDIS_ADDR, ...). A YAML file given with
--config is layered underneath the environment.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				return os.Setenv("PCMSO_CONFIG_FILE", cfgFile)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides PCMSO_CONFIG_FILE)")

	rootCmd.AddCommand(
		getMigrateCmd(),
		getConsolidateCmd(),
		getDetectCmd(),
		getDraftCmd(),
		getSubmitCmd(),
		getSignCmd(),
		getArchiveCmd(),
		getOutdateCmd(),
		getVerifyCmd(),
		getDiffCmd(),
		getComplianceCmd(),
		getExportCmd(),
		getWatchCmd(),
		getTokenCmd(),
	)
	return rootCmd
}

// withApp builds the application without an HTTP router, runs fn and closes it.
func withApp(cmd *cobra.Command, migrate bool, fn func(a *app.App, dbc dbctx.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, app.Options{SkipRouter: true, SkipMigrate: !migrate})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, dbctx.Context{Ctx: ctx})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID: %w", name, err)
	}
	return id, nil
}
