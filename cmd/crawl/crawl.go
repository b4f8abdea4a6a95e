// Package crawl implements the crawl subcommand.
package crawl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/crawler"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/proxy"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run the crawler worker pool",
		Long:  `Pulls URLs from the crawl queue, fetches them through the SOCKS5 proxy and persists pages, links and headers.`,
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

	crawlQueue := database.NewCrawlQueueRepository(rt.DB)
	locks := database.NewLockRepository(rt.DB)
	domains := database.NewDomainRepository(rt.DB)
	pages := database.NewPageRepository(rt.DB)
	crawlLogs := database.NewCrawlLogRepository(rt.DB)
	scanQueue := database.NewScanQueueRepository(rt.DB)
	dirQueue := database.NewDirScanQueueRepository(rt.DB)

	cfg := rt.Config.Crawler

	prefetcher := crawler.NewPrefetcher(crawlQueue, common.WorkerID("crawl"),
		cfg.PrefetchBatch, cfg.PrefetchLow, cfg.PrefetchPeriod, rt.Logger)

	buffer := crawler.NewWriteBuffer(crawlLogs,
		[]crawler.SeedSink{scanQueue, dirQueue},
		cfg.FlushPeriod, cfg.WriteBufferSize, rt.Logger)

	workers := make([]*crawler.Worker, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		workers = append(workers, crawler.NewWorker(
			common.WorkerID("crawl"), cfg,
			crawlQueue, locks, domains, pages,
			client, buffer, prefetcher, rt.Logger))
	}

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	return crawler.NewPool(workers, prefetcher, buffer, rt.Logger).Start(ctx)
}
