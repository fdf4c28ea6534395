// Command geoquad builds offline country-lookup quadtree artifacts from
// a pluggable Oracle and can report on artifacts it has already built.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "geoquad:", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// usageError marks a flag-parsing failure so main exits with status 2.
type usageError struct{ error }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geoquad",
		Short:         "Build and inspect country-lookup quadtree artifacts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("env-file", "", "path to a .env file (default: load ./.env if present)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.AddCommand(newBuildCmd(), newStatsCmd())
	return root
}
