// Package cli implements the checkline command-line surface: inspecting
// suspended session envelopes and dry-running catalog selections.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hwcert/checkline/internal/ctxlog"
)

var (
	logFile  string
	verbose  bool
	cleanups []func() error
)

var rootCmd = &cobra.Command{
	Use:   "checkline",
	Short: "Inspect and manage certification session state",
	Long: `checkline works with the suspended session envelopes of the
certification test runner: peek at their metadata, resume them against a
job catalog, and dry-run job selections.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger, cleanup := ctxlog.NewLogger(logFile, level)
		cleanups = append(cleanups, cleanup)
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(peekCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(planCmd)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	for _, cleanup := range cleanups {
		_ = cleanup()
	}
	return err
}
