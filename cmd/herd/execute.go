package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/herd/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var executeCmd = &cobra.Command{
	Use:   "execute COMMAND [NODE...]",
	Short: "Run a command on nodes",
	Long: `Run COMMAND through the host shell on the given nodes, or on every running
node when none are given. Every node must be ready before anything runs.`,
	Example: `  herd execute "docker ps"
  herd execute "uptime" manager1 worker2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := env.orch.Execute(cmd.Context(), args[0], args[1:])
		printResults(cmd.OutOrStdout(), results)
		return err
	},
}

var execCmd = &cobra.Command{
	Use:   "exec NODES COMMAND [ARG...]",
	Short: "Run a command with arguments on a comma separated list of nodes",
	Example: `  herd exec manager1,worker1 docker info --format '{{.Swarm.LocalNodeState}}'`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes := splitNodes(args[0])
		results, err := env.orch.ExecuteOnNodes(cmd.Context(), nodes, args[1], args[2:])
		printResults(cmd.OutOrStdout(), results)
		return err
	},
}

func init() {
	// Flags after the command belong to the command
	executeCmd.Flags().SetInterspersed(false)
	execCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(execCmd)
}

func printResults(w io.Writer, results []orchestrator.Result) {
	for _, r := range results {
		fmt.Fprint(w, section(r.Node.String(), r.Output.Text()))
	}
}

func splitNodes(s string) []string {
	var nodes []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
