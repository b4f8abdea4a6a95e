// Package stats implements the stats subcommand, printing a pipeline
// snapshot as a terminal table.
package stats

import (
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/torcrawl/cmd/common"
	"github.com/jonesrussell/torcrawl/internal/database"
)

// Command returns the stats command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pipeline statistics",
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

	ctx := cmd.Context()

	domains, err := database.NewDomainRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}
	pages, err := database.NewPageRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}
	crawlQueue, err := database.NewCrawlQueueRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}
	scanQueue, err := database.NewScanQueueRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}
	dirQueue, err := database.NewDirScanQueueRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}
	portScans, err := database.NewPortScanRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}
	dirScans, err := database.NewDirScanRepository(rt.DB).Stats(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Section", "Metric", "Value"})

	t.AppendRows([]table.Row{
		{"domains", "total", domains.Total},
		{"domains", "active", domains.Active},
		{"domains", "crawled", domains.Crawled},
		{"domains", "with title", domains.WithTitle},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"pages", "total", pages.Total},
		{"pages", "accessible", pages.Accessible},
	})
	t.AppendSeparator()
	appendQueue(t, "crawl queue", crawlQueue)
	t.AppendSeparator()
	appendQueue(t, "scan queue", scanQueue)
	t.AppendSeparator()
	appendQueue(t, "dir scan queue", dirQueue)
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"port scans", "total probes", portScans.TotalScans},
		{"port scans", "open ports", portScans.OpenPorts},
		{"port scans", "detected services", portScans.Services},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"dir scans", "total probes", dirScans.TotalProbes},
		{"dir scans", "interesting", dirScans.Interesting},
	})

	t.Render()
	return nil
}

// appendQueue adds the four status counters of one queue.
func appendQueue(t table.Writer, section string, stats *database.QueueStats) {
	t.AppendRows([]table.Row{
		{section, "pending", strconv.Itoa(stats.TotalPending)},
		{section, "processing", strconv.Itoa(stats.TotalProcessing)},
		{section, "completed", strconv.Itoa(stats.TotalCompleted)},
		{section, "failed", strconv.Itoa(stats.TotalFailed)},
	})
}
