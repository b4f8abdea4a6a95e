// Package seed implements the seed subcommand, the operator entry point for
// injecting onion addresses into the pipeline.
package seed

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/onion"
)

// Command returns the seed command.
func Command() *cobra.Command {
	var (
		profile string
		noScan  bool
	)

	cmd := &cobra.Command{
		Use:   "seed <onion-address> [onion-address...]",
		Short: "Queue onion addresses for crawling and scanning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, profile, noScan)
		},
	}

	cmd.Flags().StringVar(&profile, "profile", domain.ProfileStandard, "scan profile: quick, standard or full")
	cmd.Flags().BoolVar(&noScan, "no-scan", false, "seed the crawl queue only")

	return cmd
}

func run(cmd *cobra.Command, args []string, profile string, noScan bool) error {
	switch profile {
	case domain.ProfileQuick, domain.ProfileStandard, domain.ProfileFull:
	default:
		return fmt.Errorf("unknown profile: %s", profile)
	}

	var urls, addrs []string
	for _, arg := range args {
		addr := strings.ToLower(strings.TrimSpace(arg))
		if !onion.ValidAddress(addr) {
			return fmt.Errorf("invalid onion address: %s", arg)
		}
		addrs = append(addrs, addr)
		urls = append(urls, onion.BaseURL(addr))
	}

	rt, err := common.Setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()

	domains := database.NewDomainRepository(rt.DB)
	for _, addr := range addrs {
		if _, err := domains.Upsert(ctx, addr, nil, nil); err != nil {
			return fmt.Errorf("failed to register domain %s: %w", addr, err)
		}
	}

	crawlQueue := database.NewCrawlQueueRepository(rt.DB)
	if err := crawlQueue.Add(ctx, urls, addrs, domain.PriorityTextDiscovered); err != nil {
		return fmt.Errorf("failed to seed crawl queue: %w", err)
	}

	if !noScan {
		seeds := make([]domain.ScanSeed, 0, len(addrs))
		for _, addr := range addrs {
			seeds = append(seeds, domain.ScanSeed{
				Domain:   addr,
				Profile:  profile,
				Priority: domain.PriorityElementDiscovered,
			})
		}

		if err := database.NewScanQueueRepository(rt.DB).Seed(ctx, seeds); err != nil {
			return fmt.Errorf("failed to seed scan queue: %w", err)
		}
		if err := database.NewDirScanQueueRepository(rt.DB).Seed(ctx, seeds); err != nil {
			return fmt.Errorf("failed to seed dir scan queue: %w", err)
		}
	}

	rt.Logger.Info("seeded addresses", "count", len(addrs), "profile", profile, "scan", !noScan)
	return nil
}
