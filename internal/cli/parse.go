package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/scenario"
)

var (
	parseValidate bool
	parseJSON     bool
)

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseValidate, "validate", false, "Check the document and report OK/errors only")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print the parsed structure as JSON")
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a scenario file and show its structure",
	Long: "Parses a scenario YAML document and prints its metadata, accounts and\n" +
		"step counts. With --validate, prints only the verdict.\n\n" +
		"Exit code 0 if the document is valid, 1 if not.",
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	s, err := scenario.ParseFile(args[0])
	if err != nil {
		if parseValidate {
			fmt.Printf("INVALID: %v\n", err)
			os.Exit(1)
		}
		return err
	}

	warnings := scenario.Warnings(s)

	switch {
	case parseValidate:
		fmt.Printf("OK: %s (%d parts, %d steps)\n", s.Meta.ID, len(s.Parts), s.TotalSteps())
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
	case parseJSON:
		out, err := scenario.FormatJSON(s)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(scenario.FormatText(s))
		for _, w := range warnings {
			fmt.Printf("\nwarning: %s", w)
		}
		if len(warnings) > 0 {
			fmt.Println()
		}
	}
	return nil
}
