package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geoquad/internal/quadtree"
	"geoquad/internal/quantize"
	"geoquad/internal/serialize"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <artifact>",
		Short: "Print structural statistics about a binary artifact",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("stats: read %s: %w", args[0], err)
	}

	node, header, err := serialize.Decode(data)
	if err != nil {
		return fmt.Errorf("stats: decode %s: %w", args[0], err)
	}

	root := quadtree.Root(header.Xmax, header.Ymax)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "build id:    %s\n", header.BuildID)
	fmt.Fprintf(out, "precision:   %d\n", header.Precision)
	fmt.Fprintf(out, "resolution:  1/%g degree per lattice unit\n", quantize.QFactor(header.Precision))
	fmt.Fprintf(out, "lattice:     %d x %d (root %s)\n", header.Xmax+1, header.Ymax+1, root)
	fmt.Fprintf(out, "countries:   %d\n", len(header.Countries.SortedISOCodes()))
	fmt.Fprintf(out, "nodes:       %d\n", node.NodeCount())
	fmt.Fprintf(out, "leaves:      %d\n", node.LeafCount())
	fmt.Fprintf(out, "max depth:   %d\n", node.MaxDepth())
	fmt.Fprintf(out, "file size:   %d bytes\n", len(data))
	return nil
}
