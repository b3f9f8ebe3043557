package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/report"
)

var reportOutput string

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write the report to this file instead of stdout")
}

var reportCmd = &cobra.Command{
	Use:   "report <results-dir|results.json>",
	Short: "Render a Markdown report from saved results",
	Long: "Loads a saved results document (or the results.json inside a run\n" +
		"directory) and renders the Markdown report, with screenshot links\n" +
		"relative to wherever the report lands.",
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		path = filepath.Join(path, report.FileName)
	}

	result, err := report.Load(path)
	if err != nil {
		return err
	}

	if reportOutput != "" {
		md := report.RenderMarkdown(result, filepath.Dir(reportOutput))
		if err := os.WriteFile(reportOutput, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportOutput)
		return nil
	}

	fmt.Print(report.RenderMarkdown(result, filepath.Dir(path)))
	return nil
}
