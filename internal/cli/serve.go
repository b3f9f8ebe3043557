package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/server"
)

var (
	serveAddr     string
	serveAccounts string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveAccounts, "accounts", "", "Accounts YAML to load and hot-reload (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP session API",
	Long: "Serves the session API: create interactive sessions, advance them step\n" +
		"by step, end them, run whole scenarios. The accounts file is watched\n" +
		"and hot-reloaded; SIGINT/SIGTERM drains the server and ends every\n" +
		"live session.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveAccounts != "" {
		cfg.AccountsFile = serveAccounts
	}

	eng, err := newEngine(cfg, true)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{Addr: cfg.Server.Addr}, eng.mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AccountsFile != "" {
		reloader, err := server.NewReloader(eng.mgr, cfg.AccountsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "stagewright server listening on %s\n", cfg.Server.Addr)
	fmt.Fprintf(os.Stderr, "Output:  %s\n", cfg.Output.Dir)
	if cfg.AccountsFile != "" {
		fmt.Fprintf(os.Stderr, "Accounts: %s (hot-reload)\n", cfg.AccountsFile)
	}

	err = srv.Serve()

	// Serve has drained; end whatever sessions are still open, then
	// release the browser and stores.
	endCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	eng.mgr.CloseAll(endCtx)
	done()
	eng.Close(context.Background())
	return err
}
