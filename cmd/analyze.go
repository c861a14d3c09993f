package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
	"github.com/xkilldash9x/logsurgeon/internal/extract"
	"github.com/xkilldash9x/logsurgeon/internal/fixer"
	"github.com/xkilldash9x/logsurgeon/internal/llmclient"
	"github.com/xkilldash9x/logsurgeon/internal/observability"
	"github.com/xkilldash9x/logsurgeon/internal/publish"
	"github.com/xkilldash9x/logsurgeon/internal/reporting"
	"github.com/xkilldash9x/logsurgeon/internal/sourcectx"
	"github.com/xkilldash9x/logsurgeon/internal/store"
	"github.com/xkilldash9x/logsurgeon/internal/workflow"
)

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Extracts exceptions from log files and generates fix suggestions",
		Args:  cobra.MinimumNArgs(1),
		// Flag-to-viper bindings live in PreRunE so command-line values
		// override the config file and environment with the right precedence.
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("publish.enabled", cmd.Flags().Lookup("publish")); err != nil {
				return err
			}
			if err := viper.BindPFlag("source.root", cmd.Flags().Lookup("source-root")); err != nil {
				return err
			}
			if err := viper.BindPFlag("dispatcher.model", cmd.Flags().Lookup("model")); err != nil {
				return err
			}
			// Bind all other flags that don't have a direct mapping.
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-resolve the config. Now that flags are bound in PreRunE,
			// viper applies the overrides with the right precedence.
			finalCfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config with flag overrides: %w", err)
			}
			cfg = finalCfg

			cfg.SetAnalyzeConfig(config.AnalyzeConfig{
				Files:   args,
				Output:  viper.GetString("output"),
				Format:  viper.GetString("format"),
				Publish: cfg.Publish().Enabled,
			})
			job := cfg.Analyze()

			logger.Info("Starting analysis",
				zap.Strings("files", job.Files),
				zap.String("format", job.Format),
				zap.Bool("publish", job.Publish),
				zap.Bool("store", cfg.Store().Enabled),
			)

			components, err := initializeAnalyzeComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize analysis components: %w", err)
			}
			defer components.Shutdown()

			// Each file is an independent run; one bad file must not stop
			// the rest of the batch.
			var failed []string
			for _, logFile := range job.Files {
				result := components.Orchestrator.Run(ctx, logFile)

				outPath := reportPath(job.Output, logFile, len(job.Files) > 1)
				if err := generateReport(result, job.Format, outPath, logger); err != nil {
					return err
				}

				if !result.Success {
					failed = append(failed, logFile)
				}

				if errors.Is(ctx.Err(), context.Canceled) {
					logger.Warn("Analysis aborted, skipping remaining files.",
						zap.String("last_file", logFile))
					return fmt.Errorf("analysis aborted by user signal: %w", ctx.Err())
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("analysis failed for %d of %d files: %s",
					len(failed), len(job.Files), strings.Join(failed, ", "))
			}

			fmt.Printf("\nAnalysis complete. %d file(s) processed.\n", len(job.Files))
			return nil
		},
	}

	// Reporting flags
	analyzeCmd.Flags().StringP("output", "o", "", "Output path for the report. If unset, the report goes to stdout.")
	analyzeCmd.Flags().StringP("format", "f", "markdown", "Report format ('markdown', 'json', 'junit', 'text').")

	// Pipeline override flags.
	analyzeCmd.Flags().Bool("publish", false, "File one GitHub issue per actionable fix. (Overrides config/env)")
	analyzeCmd.Flags().String("source-root", "", "Root of the analyzed application's source tree, used to enrich prompts. (Overrides config/env)")
	analyzeCmd.Flags().String("model", "", "LLM model for fix generation, e.g. 'gemini-2.5-pro'. (Overrides config/env)")

	return analyzeCmd
}

// analyzeComponents holds initialized pipeline services.
type analyzeComponents struct {
	Client       schemas.LLMClient
	Orchestrator *workflow.Orchestrator
	DBPool       *pgxpool.Pool
}

// Shutdown releases held clients and connections.
func (ac *analyzeComponents) Shutdown() {
	if ac.Client != nil {
		if err := ac.Client.Close(); err != nil {
			observability.GetLogger().Warn("Error closing LLM client", zap.Error(err))
		}
	}
	if ac.DBPool != nil {
		ac.DBPool.Close()
	}
}

// initializeAnalyzeComponents handles dependency injection.
func initializeAnalyzeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*analyzeComponents, error) {
	components := &analyzeComponents{}

	// 1. Extraction engine
	engine := extract.NewEngine(cfg.Extraction(), logger)

	// 2. LLM client and fix dispatcher
	client, err := buildLLMClient(cfg, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	components.Client = client

	dispatcher, err := fixer.NewDispatcher(cfg.Dispatcher(), client, buildSourceResolver(cfg, logger), logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize fix dispatcher: %w", err)
	}

	// 3. Optional run persistence
	var opts []workflow.Option
	if cfg.Store().Enabled {
		dbPool, err := pgxpool.New(ctx, cfg.Store().URL)
		if err != nil {
			return components, fmt.Errorf("failed to connect to store database: %w", err)
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize run store: %w", err)
		}
		opts = append(opts, workflow.WithStore(dbStore))
	}

	// 4. Optional issue publishing
	if cfg.Publish().Enabled {
		publisher, err := publish.NewGitHubPublisher(ctx, cfg.Publish(), logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize issue publisher: %w", err)
		}
		opts = append(opts, workflow.WithPublisher(publisher))
	}

	// 5. Workflow orchestrator
	orch, err := workflow.New(logger, engine, dispatcher, opts...)
	if err != nil {
		return components, fmt.Errorf("failed to create workflow orchestrator: %w", err)
	}
	components.Orchestrator = orch

	return components, nil
}

// buildLLMClient picks the single-model client when a model override is
// configured and the tier router otherwise.
func buildLLMClient(cfg *config.Config, logger *zap.Logger) (schemas.LLMClient, error) {
	if model := cfg.Dispatcher().Model; model != "" {
		return llmclient.NewClientForModel(cfg.LLM(), model, logger)
	}
	return llmclient.NewClient(cfg.LLM(), logger)
}

// buildSourceResolver wires source-context lookup when a source root is
// configured; without one the dispatcher prompts without code snippets.
func buildSourceResolver(cfg *config.Config, logger *zap.Logger) fixer.SourceResolver {
	if cfg.Source().Root == "" {
		return nil
	}
	return sourcectx.NewResolver(cfg.Source(), logger)
}

// generateReport renders one finished run into the requested format.
func generateReport(result *schemas.RunResult, format, outputPath string, logger *zap.Logger) error {
	reporter, err := reporting.New(format, outputPath)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Error("Failed to close reporter", zap.Error(err))
		}
	}()

	if err := reporter.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if outputPath != "" && outputPath != "stdout" {
		logger.Info("Report generated.", zap.String("path", outputPath))
	}
	return nil
}

// reportPath returns the output path for one file's report. Batch runs
// with an explicit output fan out to one report per log file so later runs
// don't overwrite earlier ones.
func reportPath(output, logFile string, multi bool) string {
	if output == "" || output == "stdout" || !multi {
		return output
	}
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)
	base := strings.TrimSuffix(filepath.Base(logFile), filepath.Ext(logFile))
	return fmt.Sprintf("%s_%s%s", stem, base, ext)
}
