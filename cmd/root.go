// Package cmd implements the torcrawl command-line interface: one binary
// with a subcommand per subsystem so deployments can run crawler, scanners,
// API and maintenance as separate processes against the shared store.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcrawl "github.com/jonesrussell/torcrawl/cmd/crawl"
	cmddirscan "github.com/jonesrussell/torcrawl/cmd/dirscan"
	cmdhttpd "github.com/jonesrussell/torcrawl/cmd/httpd"
	cmdmaintain "github.com/jonesrussell/torcrawl/cmd/maintain"
	cmdportscan "github.com/jonesrussell/torcrawl/cmd/portscan"
	cmdseed "github.com/jonesrussell/torcrawl/cmd/seed"
	cmdstats "github.com/jonesrussell/torcrawl/cmd/stats"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "torcrawl",
		Short: "Onion service crawler and reconnaissance pipeline",
		Long: `Crawls onion hidden services through a SOCKS5 proxy, maps their link
graph and runs port and directory reconnaissance, all coordinated through
a shared Postgres store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(cmdcrawl.Command())
	rootCmd.AddCommand(cmdportscan.Command())
	rootCmd.AddCommand(cmddirscan.Command())
	rootCmd.AddCommand(cmdhttpd.Command())
	rootCmd.AddCommand(cmdseed.Command())
	rootCmd.AddCommand(cmdmaintain.Command())
	rootCmd.AddCommand(cmdstats.Command())
}

// initConfig wires .env, environment variables and the optional config file
// into viper. Environment variables win over file keys.
func initConfig() error {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	return nil
}
