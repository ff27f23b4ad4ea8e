// Package commands implements the trailscore CLI.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bobby-s-dev/ride-or-mud/internal/services"
)

// CLI represents the command line interface for trailscore.
type CLI struct {
	recommender *services.Recommender
	rootCmd     *cobra.Command
}

// New creates a CLI that ranks trails with the given recommender.
func New(recommender *services.Recommender) *CLI {
	rootCmd := &cobra.Command{
		Use:           "trailscore",
		Short:         "Rank nearby MTB trails by mud, weather and drive time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		recommender: recommender,
		rootCmd:     rootCmd,
	}

	rootCmd.AddCommand(c.newRankCmd())
	rootCmd.AddCommand(c.newTrailsCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
