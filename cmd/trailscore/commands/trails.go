package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newTrailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trails",
		Short: "List catalog trails with drive time from home",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := c.recommender.Engine()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Home: %s\n\n", engine.Params().Home.Name)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRAIL\tSOIL\tREGION\tDRIVE\tIN RANGE")
			for _, t := range c.recommender.Trails() {
				inRange := "no"
				if engine.WithinRange(t) {
					inRange = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d min\t%s\n",
					t.ID, t.Name, t.Soil, t.Region, engine.DriveMinutes(t), inRange)
			}
			return w.Flush()
		},
	}
}
