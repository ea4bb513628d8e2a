package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mapscout-cli",
	Short: "mapscout-cli runs Google Maps searches from the command line.",
	// Errors are printed once by ExecuteContext.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
