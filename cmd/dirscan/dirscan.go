// Package dirscan implements the dirscan subcommand.
package dirscan

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/dirscan"
	"github.com/jonesrussell/torcrawl/internal/proxy"
)

// Command returns the dirscan command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "dirscan",
		Short: "Run the directory-scan worker pool",
		Long:  `Claims domains from the dir-scan queue and probes sensitive paths against a not-found baseline.`,
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

	queue := database.NewDirScanQueueRepository(rt.DB)
	locks := database.NewLockRepository(rt.DB)
	store := database.NewDirScanRepository(rt.DB)

	cfg := rt.Config.DirScan

	workers := make([]*dirscan.Worker, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		workers = append(workers, dirscan.NewWorker(
			common.WorkerID("dirscan"), cfg, queue, locks, store, client, rt.Logger))
	}

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	return dirscan.NewPool(workers, rt.Logger).Start(ctx)
}
