package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stagewright",
	Short: "Scenario-driven browser test runner",
	Long: "Parses YAML test scenarios and drives them through a real browser:\n" +
		"batch runs for CI, or step-by-step sessions for agents and humans\n" +
		"debugging a flow one click at a time.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default stagewright.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
