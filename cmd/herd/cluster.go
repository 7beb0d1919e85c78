package main

import (
	"fmt"
	"strconv"

	"github.com/cuemby/herd/pkg/types"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create MANAGERS WORKERS",
	Short: "Create a swarm cluster",
	Long: `Create MANAGERS manager nodes and WORKERS worker nodes and join them into
a new swarm. The first manager initializes the swarm.

A partially created cluster is left in place when a step fails.`,
	Example: `  herd --prefix lab create 3 2`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		managers, err := parseCount("managers", args[0])
		if err != nil {
			return err
		}
		workers, err := parseCount("workers", args[1])
		if err != nil {
			return err
		}
		return env.orch.Create(cmd.Context(), managers, workers)
	},
}

var addCmd = &cobra.Command{
	Use:   "add (--manager N | --worker N)",
	Short: "Add nodes to a running cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role := types.RoleManager
		count, _ := cmd.Flags().GetInt("manager")
		if cmd.Flags().Changed("worker") {
			role = types.RoleWorker
			count, _ = cmd.Flags().GetInt("worker")
		}
		return env.orch.Add(cmd.Context(), role, count)
	},
}

var startCmd = &cobra.Command{
	Use:   "start [NODE...]",
	Short: "Start stopped nodes and rejoin them to the swarm",
	Long: `Start the given nodes, or every stopped node when none are given, and join
them back to the swarm with a fresh token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.orch.Start(cmd.Context(), args)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [NODE...]",
	Short: "Leave the swarm and stop nodes",
	Long: `Stop the given nodes, or every running node when none are given. Workers
are stopped first and managers last. Each node leaves the swarm, its host is
stopped, and it is removed from the node list once the swarm reports it down.

Stopping every running manager is refused while other nodes would keep
running. The last manager is stopped without node cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.orch.Stop(cmd.Context(), args)
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove [NODE...]",
	Aliases: []string{"rm"},
	Short:   "Remove stopped nodes",
	Long: `Remove the hosts of the given nodes, or of every stopped cluster node
when none are given. Every named node must be stopped first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.orch.Remove(cmd.Context(), args)
	},
}

var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the swarm node and network listings",
	Args:        cobra.NoArgs,
	Annotations: readOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := env.orch.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.String())
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:         "ls",
	Short:       "List cluster nodes with machine and swarm state",
	Args:        cobra.NoArgs,
	Annotations: readOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := env.orch.Nodes(cmd.Context())
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No cluster nodes found")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"NODE", "ROLE", "MACHINE", "SWARM"},
			nodeRows(nodes),
		))
		return nil
	},
}

func init() {
	addCmd.Flags().Int("manager", 0, "Number of managers to add")
	addCmd.Flags().Int("worker", 0, "Number of workers to add")
	addCmd.MarkFlagsMutuallyExclusive("manager", "worker")
	addCmd.MarkFlagsOneRequired("manager", "worker")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(lsCmd)
}

func parseCount(what, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", what, s)
	}
	return n, nil
}
