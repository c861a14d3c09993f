// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/internal/config"
	"github.com/xkilldash9x/logsurgeon/internal/observability"
)

var (
	cfgFile string
	// cfg holds the configuration loaded by the root PersistentPreRunE.
	// Subcommands that bind their own flags re-resolve it in RunE so flag
	// overrides land with the right precedence.
	cfg *config.Config
)

// NewRootCommand builds the base command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "logsurgeon",
		Short: "Logsurgeon extracts exceptions from log files and drafts fixes for them.",
		Long: `Logsurgeon scans application log files for exception stack traces,
reassembles them into structured records (cause chains, frames, context),
and dispatches each one to an LLM collaborator that proposes a concrete
code fix. Results are rendered as markdown, JSON, JUnit XML or plain text,
and can optionally be persisted to Postgres or filed as GitHub issues.`,
		// Version is injected at build time. See cmd/version.go.
		Version: Version,
		// main.go owns error reporting and exit codes.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Runs before any subcommand, setting up config and logging.
			if err := initializeConfig(); err != nil {
				return err
			}

			loaded, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				// Bring up a fallback logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "logsurgeon"})
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("Starting logsurgeon", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches $HOME and . for logsurgeon.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newWatchCmd())

	return rootCmd
}

// Execute builds the root command and runs it with the given signal-aware
// context.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// initializeConfig seeds defaults and reads the config file and environment.
func initializeConfig() error {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName("logsurgeon")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LOGSURGEON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config.SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}
	return nil
}
