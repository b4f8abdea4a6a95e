// Package portscan implements the portscan subcommand.
package portscan

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/proxy"
	"github.com/jonesrussell/torcrawl/internal/scanner"
)

// Command returns the portscan command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "portscan",
		Short: "Run the port-scan worker pool",
		Long:  `Claims domains from the scan queue and probes their ports over raw TCP through the SOCKS5 proxy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}
}

func run(cmd *cobra.Command) error {
	rt, err := common.Setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	client, err := proxy.NewClient(rt.Config.Proxy, rt.Logger)
	if err != nil {
		return fmt.Errorf("failed to create proxy client: %w", err)
	}

	queue := database.NewScanQueueRepository(rt.DB)
	locks := database.NewLockRepository(rt.DB)
	store := database.NewPortScanRepository(rt.DB)

	cfg := rt.Config.Scanner

	workers := make([]*scanner.Worker, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		workers = append(workers, scanner.NewWorker(
			common.WorkerID("portscan"), cfg, queue, locks, store, client, rt.Logger))
	}

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	return scanner.NewPool(workers, rt.Logger).Start(ctx)
}
