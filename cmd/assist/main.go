package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"basegraph.app/assist/common/id"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/service"
)

const (
	Version = "0.1.0"
	appName = "assist"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Customer service assistant tooling",
		Long:          "Operator commands for the customer service assistant: load scripts into the knowledge base, inspect recorded conversations and try recommendations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(ingestCmd(), inspectCmd(), recommendCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

// bootstrap loads configuration and wires the same services the server runs. The
// returned cleanup releases every client.
func bootstrap(ctx context.Context) (*service.Services, func(), error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg)

	if err := id.Init(cfg.NodeID); err != nil {
		return nil, nil, fmt.Errorf("initializing id generator: %w", err)
	}

	infra, err := service.NewInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	infra.Start(runCtx)

	cleanup := func() {
		cancel()
		infra.Close()
	}
	return service.NewServices(infra, nil), cleanup, nil
}
