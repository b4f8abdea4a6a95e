// Package httpd implements the httpd subcommand serving the read API.
package httpd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/api"
	"github.com/jonesrussell/torcrawl/internal/database"
)

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the read API",
		Long:  `Serves the search interface, statistics snapshot and domain detail pages.`,
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

	deps := api.Deps{
		Search:     database.NewSearchRepository(rt.DB),
		Domains:    database.NewDomainRepository(rt.DB),
		Pages:      database.NewPageRepository(rt.DB),
		PortScans:  database.NewPortScanRepository(rt.DB),
		DirScans:   database.NewDirScanRepository(rt.DB),
		CrawlQueue: database.NewCrawlQueueRepository(rt.DB),
		ScanQueue:  database.NewScanQueueRepository(rt.DB),
		DirQueue:   database.NewDirScanQueueRepository(rt.DB),
	}

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	return api.NewServer(rt.Config.Server, deps, rt.Logger).Start(ctx)
}
