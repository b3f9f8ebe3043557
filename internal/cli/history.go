package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/history"
)

var (
	historyLimit    int
	historyScenario string
	historyJSON     bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().StringVar(&historyScenario, "scenario", "", "Show only runs of this scenario id")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print runs as JSON")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long:  "Queries the run-history database, newest first.",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), historyLimit, historyScenario)
	if err != nil {
		return err
	}

	if historyJSON {
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tSTATUS\tMODE\tSTEPS\tPASS\tFAIL\tSKIP\tWHEN")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.ScenarioID, r.Status, r.Mode,
			r.TotalSteps, r.Passed, r.Failed, r.Skipped,
			r.StartedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
