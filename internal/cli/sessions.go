package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/client"
	"github.com/ppiankov/stagewright/internal/config"
)

var sessionsServer string

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().StringVar(&sessionsServer, "server", "", "Server URL (default from config server.addr)")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live sessions on a running server",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	addr := sessionsServer
	if addr == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		addr = cfg.Server.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
	}

	infos, err := client.New(addr).Sessions(context.Background())
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Println("No live sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSCENARIO\tSTATUS\tPART\tPROGRESS\tACCOUNT\tCREATED")
	for _, s := range infos {
		account := s.Account
		if account == "" {
			account = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d/%d\t%s\t%s\n",
			s.SessionID, s.ScenarioID, s.Status,
			s.Part, s.TotalParts, s.Executed, s.TotalSteps,
			account, s.CreatedAt.Format("15:04:05"))
	}
	return w.Flush()
}
