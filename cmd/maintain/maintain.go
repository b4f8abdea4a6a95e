// Package maintain implements the maintain subcommand running the janitor.
package maintain

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/maintain"
)

// Command returns the maintain command.
func Command() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Reclaim stale locks and queue rows",
		Long:  `Sweeps expired domain locks, crawl queue rows stuck in processing and domains stuck in crawling. Runs on a schedule unless --once is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run one sweep and exit")

	return cmd
}

func run(cmd *cobra.Command, once bool) error {
	rt, err := common.Setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	janitor := maintain.NewJanitor(
		database.NewLockRepository(rt.DB),
		database.NewCrawlQueueRepository(rt.DB),
		database.NewDomainRepository(rt.DB),
		rt.Config.Crawler.LockLease,
		rt.Logger,
	)

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	if once {
		janitor.Sweep(ctx)
		return nil
	}

	return janitor.Start(ctx)
}
