package main

import (
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage swarm networks",
}

var networkCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an overlay network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.orch.CreateNetwork(cmd.Context(), args[0])
	},
}

func init() {
	networkCmd.AddCommand(networkCreateCmd)
	rootCmd.AddCommand(networkCmd)
}
