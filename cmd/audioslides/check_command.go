package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivlev/audioslides/internal/system"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify ffmpeg, ffprobe and the filters a render needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			checks := system.Preflight(cmd.Context(), cfg.Binaries(), cfg.Encoder)
			rows := make([][]string, 0, len(checks))
			for _, c := range checks {
				status := "ok"
				if !c.OK {
					status = "FAIL"
				}
				rows = append(rows, []string{c.Name, status, c.Detail})
			}
			printTable(out, []string{"Check", "Status", "Detail"}, rows, nil)

			host := system.Host(cmd.Context())
			printTable(out, []string{"Host", "Value"}, [][]string{
				{"Logical CPUs", strconv.Itoa(host.LogicalCPUs)},
				{"Physical CPUs", strconv.Itoa(host.PhysicalCPUs)},
				{"Total memory", formatBytes(host.TotalMemory)},
				{"Free memory", formatBytes(host.FreeMemory)},
				{"Default workers", strconv.Itoa(system.DefaultWorkers())},
			}, []columnAlignment{alignLeft, alignRight})

			return system.FirstFailure(checks)
		},
	}
}
