package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/herd/pkg/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently journaled operations",
	Long: `Show the operations recorded in the journal, newest first. With --events
the lifecycle events of each operation are listed below it.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStandalone: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		withEvents, _ := cmd.Flags().GetBool("events")

		journal, err := storage.NewBoltJournal(env.cfg.StateDir, storage.Options{ReadOnly: true})
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded")
				return nil
			}
			return err
		}
		defer journal.Close()

		ops, err := journal.ListOperations(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded")
			return nil
		}

		if !withEvents {
			rows := make([][]string, 0, len(ops))
			for _, op := range ops {
				rows = append(rows, operationRow(op))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"STARTED", "OPERATION", "ARGS", "RESULT", "DURATION", "ERROR"},
				rows,
			))
			return nil
		}

		for _, op := range ops {
			row := operationRow(op)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s [%s]\n", row[0], row[1], row[2], row[3])
			evs, err := journal.ListEvents(op)
			if err != nil {
				return err
			}
			for _, e := range evs {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %-20s %s\n",
					e.Timestamp.Format(time.TimeOnly), e.Type, e.Message)
			}
			if op.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", errorStyle.Render(op.Error))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Number of operations to show (0 for all)")
	historyCmd.Flags().Bool("events", false, "List the events of each operation")
	rootCmd.AddCommand(historyCmd)
}

func operationRow(op *storage.Operation) []string {
	result := op.Result
	switch result {
	case storage.ResultSuccess:
		result = successStyle.Render(result)
	case storage.ResultFailure:
		result = errorStyle.Render(result)
	default:
		result = warnStyle.Render(result)
	}

	duration := "-"
	if d := op.Duration(); d > 0 {
		duration = d.Round(time.Millisecond).String()
	}

	return []string{
		op.StartedAt.Local().Format(time.DateTime),
		op.Name,
		fmt.Sprint(op.Args),
		result,
		duration,
		op.Error,
	}
}
