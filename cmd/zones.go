package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Print the assessment zones",
	Run: func(cmd *cobra.Command, args []string) {
		printZones(cmd.OutOrStdout(), current.cfg.TrainingZones())
	},
}

func printZones(out io.Writer, zones []assessment.TrainingZone) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tCOLOR\tEFFORT\tDURATION")
	for _, z := range zones {
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", z.ID, z.Name.DisplayName(), z.TargetEffort, z.Duration)
	}
	fmt.Fprintf(w, "total\t\t\t%v\n", assessment.TotalDuration(zones))
	w.Flush()
}
