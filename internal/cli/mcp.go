package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/config"
	"github.com/ppiankov/stagewright/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP tool server for agent integration",
	Long: "Runs stagewright as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes scenario tools: validate, run, start, step, end, sessions, info.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	// stdout carries the protocol; everything human goes to stderr.
	fmt.Fprintln(os.Stderr, "stagewright MCP server running on stdio")

	err = mcp.New(eng.mgr).Run(ctx)
	eng.Close(context.Background())
	return err
}
