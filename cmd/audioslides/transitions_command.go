package main

import (
	"github.com/spf13/cobra"

	"github.com/ivlev/audioslides/internal/transition"
)

func newTransitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "List the xfade transitions picked between segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := transition.All()
			rows := make([][]string, 0, len(all))
			for _, t := range all {
				rows = append(rows, []string{string(t), t.Description()})
			}
			printTable(cmd.OutOrStdout(), []string{"Name", "Description"}, rows, nil)
			return nil
		},
	}
}
