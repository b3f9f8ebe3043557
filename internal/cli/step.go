package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/scenario"
)

var (
	stepOutput  string
	stepBaseURL string
)

func init() {
	rootCmd.AddCommand(stepCmd)
	stepCmd.Flags().StringVarP(&stepOutput, "output", "o", "", "Output directory (default a dated directory under output.dir)")
	stepCmd.Flags().StringVar(&stepBaseURL, "base-url", "", "Base URL for relative navigation (overrides config)")
}

var stepCmd = &cobra.Command{
	Use:   "step <file> <step-id>",
	Short: "Execute a single step of a scenario",
	Long: "Runs exactly one step by id, including its part's account switch, and\n" +
		"prints the result. Useful while writing a scenario: tweak a step, rerun\n" +
		"it, repeat.\n\n" +
		"Exit code 0 if the step passed, 1 if it failed.",
	Args: cobra.ExactArgs(2),
	RunE: runOneStep,
}

func runOneStep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if stepBaseURL != "" {
		cfg.BaseURL = stepBaseURL
	}

	eng, err := newEngine(cfg, false)
	if err != nil {
		return err
	}

	ctx := context.Background()
	outcome, err := eng.mgr.RunOne(ctx, manager.SingleOptions{
		Path:      args[0],
		StepID:    args[1],
		OutputDir: stepOutput,
	})
	if err != nil {
		eng.Close(ctx)
		return err
	}

	sr := outcome.Result
	fmt.Printf("[%s] %s %s  %dms\n", sr.StepID, sr.Desc, mark(sr.Status), sr.DurationMS)
	for _, a := range sr.Assertions {
		fmt.Printf("  %s: expected %q, actual %q (%v)\n", a.Type, a.Expected, a.Actual, a.Passed)
	}
	if sr.Error != "" {
		fmt.Printf("  error: %s\n", sr.Error)
	}
	if sr.Screenshot != "" {
		fmt.Printf("  screenshot: %s\n", sr.Screenshot)
	}
	fmt.Printf("Results: %s\n", outcome.ResultsPath)

	eng.Close(ctx)
	if sr.Status == scenario.StatusFailed {
		os.Exit(1)
	}
	return nil
}
