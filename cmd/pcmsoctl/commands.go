package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/occhealth/pcmso-backend/internal/app"
	"github.com/occhealth/pcmso-backend/internal/events"
	"github.com/occhealth/pcmso-backend/internal/http/middleware"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
	"github.com/occhealth/pcmso-backend/internal/services"
)

func getMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(a *app.App, _ dbctx.Context) error {
				fmt.Fprintln(cmd.OutOrStdout(), `{"migrated": true}`)
				return nil
			})
		},
	}
}

func getConsolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate <jobId>",
		Short: "Prints the consolidated exam requirements of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID("jobId", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				res, err := a.Services.Consolidation.ConsolidateJob(dbc, jobID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func getDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <companyId>",
		Short: "Compares the live rules of a company with its last signed version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := parseID("companyId", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				rep, err := a.Services.PCMSO.DetectChanges(dbc, companyID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
}

func getDraftCmd() *cobra.Command {
	var (
		userRaw string
		opts    services.DraftOptions
	)
	cmd := &cobra.Command{
		Use:   "draft <companyId>",
		Short: "Generates a new draft version from the live rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := parseID("companyId", args[0])
			if err != nil {
				return err
			}
			userID, err := parseID("--user", userRaw)
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				res, err := a.Services.PCMSO.GenerateDraft(dbc, companyID, userID, opts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&userRaw, "user", "", "acting user id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "version title")
	cmd.Flags().BoolVar(&opts.UseAI, "use-ai", false, "mark the content as AI generated")
	cmd.Flags().StringVar(&opts.AIModel, "ai-model", "", "model name recorded with --use-ai")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// transitionCmd builds the commands that move one version through its lifecycle.
func transitionCmd(use, short string, run func(s services.PCMSOService, dbc dbctx.Context, versionID, userID uuid.UUID) (any, error)) *cobra.Command {
	var userRaw string
	cmd := &cobra.Command{
		Use:   use + " <versionId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := parseID("versionId", args[0])
			if err != nil {
				return err
			}
			userID, err := parseID("--user", userRaw)
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				out, err := run(a.Services.PCMSO, dbc, versionID, userID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&userRaw, "user", "", "acting user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func getSubmitCmd() *cobra.Command {
	return transitionCmd("submit", "Submits a draft for review", func(s services.PCMSOService, dbc dbctx.Context, versionID, userID uuid.UUID) (any, error) {
		return s.SubmitForReview(dbc, versionID, userID)
	})
}

func getSignCmd() *cobra.Command {
	return transitionCmd("sign", "Signs a version and outdates older signed ones", func(s services.PCMSOService, dbc dbctx.Context, versionID, userID uuid.UUID) (any, error) {
		return s.SignVersion(dbc, versionID, userID)
	})
}

func getArchiveCmd() *cobra.Command {
	return transitionCmd("archive", "Archives a version", func(s services.PCMSOService, dbc dbctx.Context, versionID, userID uuid.UUID) (any, error) {
		return s.ArchiveVersion(dbc, versionID, userID)
	})
}

func getOutdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outdate <companyId> <versionNumber>",
		Short: "Marks signed versions older than versionNumber as outdated",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := parseID("companyId", args[0])
			if err != nil {
				return err
			}
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("versionNumber must be an integer: %w", err)
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				n, err := a.Services.PCMSO.MarkPreviousVersionsOutdated(dbc, companyID, number)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"outdated": n})
			})
		},
	}
}

func getVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <versionId>",
		Short: "Recomputes the digest of a signed version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := parseID("versionId", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				check, err := a.Services.PCMSO.VerifyDigest(dbc, versionID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), check)
			})
		},
	}
}

func getDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <fromVersionId> <toVersionId>",
		Short: "Compares two versions of the same company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := parseID("fromVersionId", args[0])
			if err != nil {
				return err
			}
			toID, err := parseID("toVersionId", args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				diff, err := a.Services.PCMSO.Diff(dbc, fromID, toID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), diff)
			})
		},
	}
}

func getComplianceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compliance <versionId>",
		Short: "Checks a version against the NR-7 hazard table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := parseID("versionId", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				rep, err := a.Services.Compliance.ValidateCompliance(dbc, versionID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
}

func getExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <versionId>",
		Short: "Writes the exam matrix of a version as XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := parseID("versionId", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(a *app.App, dbc dbctx.Context) error {
				raw, err := a.Services.Export.ExportVersionXLSX(dbc, versionID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, raw, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"file": out, "bytes": len(raw)})
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "pcmso.xlsx", "output file")
	return cmd
}

func getWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Prints version lifecycle events published on Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Nop()
			cfg, err := app.LoadConfig(log)
			if err != nil {
				return err
			}
			if cfg.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is not set")
			}
			bus, err := events.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
			if err != nil {
				return err
			}
			defer bus.Close()
			w := cmd.OutOrStdout()
			return bus.Subscribe(cmd.Context(), func(evt events.Event) {
				_ = writeJSON(w, evt)
			})
		},
	}
}

func getTokenCmd() *cobra.Command {
	var (
		userRaw string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issues a bearer token for the HTTP API signed with JWT_SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("--user", userRaw)
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig(logger.Nop())
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(cfg.JWTSecretKey, cfg.JWTIssuer, userID, ttl)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"token": token, "expiresIn": ttl.String()})
		},
	}
	cmd.Flags().StringVar(&userRaw, "user", "", "user id placed in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
