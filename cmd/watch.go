package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/internal/config"
	"github.com/xkilldash9x/logsurgeon/internal/extract"
	"github.com/xkilldash9x/logsurgeon/internal/fixer"
	"github.com/xkilldash9x/logsurgeon/internal/observability"
	"github.com/xkilldash9x/logsurgeon/internal/watch"
)

// newWatchCmd creates and configures the `watch` command.
func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Tails a live log file and analyzes exceptions as they appear",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("watch.from_start", cmd.Flags().Lookup("from-start")); err != nil {
				return err
			}
			if err := viper.BindPFlag("watch.flush_interval", cmd.Flags().Lookup("flush-interval")); err != nil {
				return err
			}
			if err := viper.BindPFlag("source.root", cmd.Flags().Lookup("source-root")); err != nil {
				return err
			}
			if err := viper.BindPFlag("dispatcher.model", cmd.Flags().Lookup("model")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			finalCfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config with flag overrides: %w", err)
			}
			cfg = finalCfg

			engine := extract.NewEngine(cfg.Extraction(), logger)

			client, err := buildLLMClient(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM client: %w", err)
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Warn("Error closing LLM client", zap.Error(err))
				}
			}()

			dispatcher, err := fixer.NewDispatcher(cfg.Dispatcher(), client, buildSourceResolver(cfg, logger), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize fix dispatcher: %w", err)
			}

			events := make(chan watch.Event, 16)
			watcher, err := watch.NewWatcher(logger, engine, dispatcher, cfg.Watch(), args[0], events)
			if err != nil {
				return fmt.Errorf("failed to initialize watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}

			fmt.Printf("Watching %s for exceptions. Press Ctrl-C to stop.\n", args[0])

			for {
				select {
				case ev := <-events:
					printWatchEvent(ev)
				case <-ctx.Done():
					// Let in-flight extraction and dispatch finish, then
					// drain whatever the final flush produced.
					watcher.Wait()
					for {
						select {
						case ev := <-events:
							printWatchEvent(ev)
						default:
							logger.Info("Watch mode stopped.")
							return nil
						}
					}
				}
			}
		},
	}

	watchCmd.Flags().Bool("from-start", false, "Replay the file from the beginning instead of only new lines. (Overrides config/env)")
	watchCmd.Flags().Duration("flush-interval", 0, "Quiet period after which a buffered exception burst is analyzed. (Overrides config/env)")
	watchCmd.Flags().String("source-root", "", "Root of the analyzed application's source tree, used to enrich prompts. (Overrides config/env)")
	watchCmd.Flags().String("model", "", "LLM model for fix generation. (Overrides config/env)")

	return watchCmd
}

// printWatchEvent renders one live-detected exception to the console.
func printWatchEvent(ev watch.Event) {
	rec := ev.Record

	header := fmt.Sprintf("[%s] %s", rec.Severity, rec.Type)
	if rec.Message != "" {
		header += ": " + rec.Message
	}
	fmt.Printf("\n%s\n", header)

	if frame := rec.InnermostFrame(); frame != nil {
		fmt.Printf("  at %s.%s (%s:%d)\n", frame.Class, frame.Method, frame.File, frame.Line)
	}
	if depth := rec.CauseDepth(); depth > 0 {
		fmt.Printf("  caused by %d nested exception(s)\n", depth)
	}

	if ev.Outcome == nil {
		return
	}
	fmt.Printf("  fix status: %s (confidence %.2f)\n", ev.Outcome.Status, ev.Outcome.Confidence)
	if ev.Outcome.RootCause != "" {
		fmt.Printf("  root cause: %s\n", ev.Outcome.RootCause)
	}
	if ev.Outcome.FixDescription != "" {
		fmt.Printf("  suggested fix: %s\n", ev.Outcome.FixDescription)
	}
}
