package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/manager"
	"github.com/ppiankov/stagewright/internal/scenario"
)

var (
	runOutput      string
	runPart        int
	runStopOnError bool
	runBaseURL     string
	runAccounts    string
	runJSON        bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output directory (default a dated directory under output.dir)")
	runCmd.Flags().IntVar(&runPart, "part", 0, "Run only this part (1-based)")
	runCmd.Flags().BoolVar(&runStopOnError, "stop-on-error", false, "Halt on the first failed step")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "Base URL for relative navigation (overrides config)")
	runCmd.Flags().StringVar(&runAccounts, "accounts", "", "External accounts YAML (overrides config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run summary as JSON")
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a scenario start to finish",
	Long: "Executes every part and step of a scenario against a browser, saves\n" +
		"results and screenshots, and prints a summary.\n\n" +
		"Exit code 0 if the scenario passed, 1 if any step failed.",
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runBaseURL != "" {
		cfg.BaseURL = runBaseURL
	}
	if runAccounts != "" {
		cfg.AccountsFile = runAccounts
	}

	eng, err := newEngine(cfg, false)
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := manager.RunOptions{
		Path:        args[0],
		OutputDir:   runOutput,
		Part:        runPart,
		StopOnError: runStopOnError,
	}
	if !runJSON {
		opts.OnPartStart = func(p *scenario.Part) {
			account := p.Account
			if account == "" {
				account = "none"
			}
			fmt.Printf("\nPart %d: %s (account: %s)\n", p.Index, p.Title, account)
		}
		opts.OnStepDone = func(st *scenario.Step, sr scenario.StepResult) {
			fmt.Printf("  [%s] %-40s %s  %dms\n", sr.StepID, sr.Desc, mark(sr.Status), sr.DurationMS)
			if sr.Error != "" {
				fmt.Printf("        error: %s\n", sr.Error)
			}
		}
	}

	outcome, err := eng.mgr.Run(ctx, opts)
	if err != nil {
		eng.Close(ctx)
		return err
	}

	if runJSON {
		out, merr := json.MarshalIndent(outcome, "", "  ")
		if merr != nil {
			eng.Close(ctx)
			return merr
		}
		fmt.Println(string(out))
	} else {
		fmt.Printf("\nStatus: %s  (%d steps, %d passed, %d failed, %d skipped)\n",
			outcome.Status, outcome.TotalSteps, outcome.Passed, outcome.Failed, outcome.Skipped)
		fmt.Printf("Results: %s\n", outcome.ResultsPath)
		if outcome.VideoPath != "" {
			fmt.Printf("Video:   %s\n", outcome.VideoPath)
		}
	}

	eng.Close(ctx)
	if outcome.Status == string(scenario.StatusFailed) {
		os.Exit(1)
	}
	return nil
}

func mark(status scenario.Status) string {
	switch status {
	case scenario.StatusPassed:
		return "✓"
	case scenario.StatusFailed:
		return "✗"
	case scenario.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}
