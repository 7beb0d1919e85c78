package main

import (
	"fmt"

	"github.com/cuemby/herd/pkg/types"
	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage swarm services",
}

var serviceCreateCmd = &cobra.Command{
	Use:   "create [flags] NAME IMAGE [-- COMMAND [ARG...]]",
	Short: "Create a service",
	Example: `  herd service create --replicas 3 --publish 8080:80 web nginx
  herd service create --mode global agent alpine -- ping docker.com`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		spec := types.ServiceSpec{
			Name:  args[0],
			Image: args[1],
		}
		if len(args) > 2 {
			spec.Command = args[2]
			spec.Args = args[3:]
		}
		spec.Env, _ = flags.GetStringArray("env")
		spec.Mounts, _ = flags.GetStringArray("mount")
		spec.Mode, _ = flags.GetString("mode")
		spec.Network, _ = flags.GetString("network")
		spec.Publish, _ = flags.GetString("publish")
		spec.Replicas, _ = flags.GetString("replicas")

		return env.orch.CreateService(cmd.Context(), spec)
	},
}

var serviceRemoveCmd = &cobra.Command{
	Use:     "remove NAME...",
	Aliases: []string{"rm"},
	Short:   "Remove services",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.orch.RemoveServices(cmd.Context(), args)
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:         "status [NAME...]",
	Short:       "Show services and their tasks",
	Annotations: readOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := env.orch.ServiceStatus(cmd.Context(), args)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.String())
		return nil
	},
}

func init() {
	flags := serviceCreateCmd.Flags()
	flags.StringArray("env", nil, "Environment variable KEY=VALUE (repeatable)")
	flags.StringArray("mount", nil, "Mount specification (repeatable)")
	flags.String("mode", "", "Service mode (replicated or global)")
	flags.String("network", "", "Network to attach to")
	flags.String("publish", "", "Port to publish, e.g. 8080:80")
	flags.String("replicas", "", "Number of tasks")

	serviceCmd.AddCommand(serviceCreateCmd)
	serviceCmd.AddCommand(serviceRemoveCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	rootCmd.AddCommand(serviceCmd)
}
