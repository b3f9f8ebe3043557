package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/scenario"
)

var listPart int

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listPart, "part", 0, "Show only this part (1-based)")
}

var listCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List the steps of a scenario",
	Long: "Prints every step with its id, description, action kind and screenshot\n" +
		"marker. Use --part to restrict the listing to one part.",
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := scenario.ParseFile(args[0])
	if err != nil {
		return err
	}
	fmt.Print(scenario.FormatSteps(s, listPart))
	return nil
}
