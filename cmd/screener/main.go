// Command screener screens ledger addresses for transfer-graph exposure to
// sanctioned addresses.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/screener/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	flagFmt      string
	flagConfig   string
	flagLogLevel string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("screener version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("screener version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "screener",
		Short:   "Screen ledger addresses for exposure to sanctioned addresses",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagFmt != "json" && flagFmt != "table" {
				return fmt.Errorf("--format must be json or table, got %q", flagFmt)
			}
			if flagConfig != "" {
				return os.Setenv("SCREENER_CONFIG", flagConfig)
			}
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: json|table")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (env: SCREENER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level, overriding LOG_LEVEL")

	rootCmd.AddCommand(newScreenCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the screener version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

// newLogger writes to stderr so stdout stays clean for reports.
func newLogger(level string, json bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if flagLogLevel != "" {
		level = flagLogLevel
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if json {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}
