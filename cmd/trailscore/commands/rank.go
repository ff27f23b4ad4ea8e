package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bobby-s-dev/ride-or-mud/internal/services"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

var errNoCachedForecasts = errors.New("no cached forecasts, run without --cache-only first")

func (c *CLI) newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Score in-range trails for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawDate, _ := cmd.Flags().GetString("date")
			cacheOnly, _ := cmd.Flags().GetBool("cache-only")

			date, err := c.recommender.ResolveDate(rawDate)
			if err != nil {
				return err
			}

			var set *services.RecommendationSet
			if cacheOnly {
				var ok bool
				set, ok = c.recommender.Rescore(cmd.Context(), date, true)
				if !ok {
					return errNoCachedForecasts
				}
			} else {
				set = c.recommender.Recommend(cmd.Context(), date)
			}

			return writeRanking(cmd.OutOrStdout(), set)
		},
	}
	cmd.Flags().StringP("date", "d", "", "Target date YYYY-MM-DD (default tomorrow)")
	cmd.Flags().Bool("cache-only", false, "Only rescore cached forecasts, never fetch")
	return cmd
}

func writeRanking(out io.Writer, set *services.RecommendationSet) error {
	fmt.Fprintf(out, "%s (%s) via %s, served by %s\n\n", set.DateLabel, set.Date, set.Provider, set.ServedBy)
	if set.AllFailed {
		fmt.Fprintln(out, "Could not load weather, scores use dry defaults.")
		fmt.Fprintln(out)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tTRAIL\tSCORE\tSTATUS\tRAIN %dH\tTEMP\tDRIVE\tSOURCE\n", rainWindowHours(set))
	for i, rec := range set.Recommendations {
		temp := "-"
		if rec.Score.TempAtRefHour != nil {
			temp = fmt.Sprintf("%.0f°C", *rec.Score.TempAtRefHour)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.1f mm\t%s\t%d min\t%s\n",
			i+1,
			rec.Trail.Name,
			rec.Score.Overall,
			rec.Score.Status,
			rec.Score.RainfallAccumulated,
			temp,
			rec.Score.DriveMinutes,
			rec.Facts.Source)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(set.Unscored) > 0 {
		fmt.Fprintf(out, "\nNo cached forecast for %d trail(s): %s\n", len(set.Unscored), strings.Join(set.Unscored, ", "))
	}

	_, err := fmt.Fprintf(out, "\n%d green, %d yellow, %d red\n", set.Summary.Green, set.Summary.Yellow, set.Summary.Red)
	return err
}

// rainWindowHours reads the accumulation window from the first scored facts.
// Fallback facts carry no window, so the provider default applies.
func rainWindowHours(set *services.RecommendationSet) int {
	for _, rec := range set.Recommendations {
		if rec.Facts != nil && rec.Facts.RainfallWindowHours > 0 {
			return rec.Facts.RainfallWindowHours
		}
	}
	return client.DefaultParseOptions().WindowHours
}
