package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	// Progress lines are flushed before the error is printed
	env.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "herd",
	Short: "herd - Docker Swarm node lifecycle from the command line",
	Long: `herd creates a Docker Swarm cluster out of machines provisioned with
docker-machine (or limactl), and grows, stops, starts and removes its nodes.

Nodes are named <prefix>-manager<N> and <prefix>-worker<N>. Node arguments
may be given with or without the prefix.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Global flags
var (
	flagDriver          string
	flagPrefix          string
	flagConfig          string
	flagLogLevel        string
	flagLogJSON         bool
	flagStateDir        string
	flagMetricsTextfile string
	flagNoLock          bool
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"herd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagDriver, "driver", "", "Provisioning driver (virtualbox, amazonec2, lima, ...)")
	flags.StringVar(&flagPrefix, "prefix", "", "Host name prefix of the cluster")
	flags.StringVar(&flagConfig, "config", "", "Config file (default $XDG_CONFIG_HOME/herd/config.yaml)")
	flags.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&flagLogJSON, "log-json", false, "Log in JSON format")
	flags.StringVar(&flagStateDir, "state-dir", "", "Directory of the operation journal")
	flags.StringVar(&flagMetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	flags.BoolVar(&flagNoLock, "no-lock", false, "Do not take the journal lock for read-only commands")
}
