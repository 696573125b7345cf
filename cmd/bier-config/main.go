// Command bier-config builds per-node BIFT configuration files from a
// link-weighted topology.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/gobier/internal/biftbuilder"
	"github.com/dantte-lp/gobier/internal/bift"
)

var (
	topoFile  string
	outputDir string
	node2ipv6 string
)

var rootCmd = &cobra.Command{
	Use:   "bier-config",
	Short: "Compute per-node BIER forwarding tables from a topology",
	Long: "bier-config reads a link-weighted adjacency file and a node-to-loopback " +
		"mapping, runs Dijkstra plus F-BM aggregation per source node, and writes one " +
		"BIFT configuration JSON file per node.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBuild,
}

func init() {
	rootCmd.Flags().StringVarP(&topoFile, "topo-file", "f", "", "topology adjacency file (required)")
	rootCmd.Flags().StringVarP(&outputDir, "directory", "d", "", "output directory for per-node BIFT files (required)")
	rootCmd.Flags().StringVarP(&node2ipv6, "node2ipv6", "i", "", "node index to loopback address mapping file (required)")
	for _, name := range []string{"topo-file", "directory", "node2ipv6"} {
		if err := rootCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func runBuild(_ *cobra.Command, _ []string) error {
	topoFh, err := os.Open(topoFile)
	if err != nil {
		return fmt.Errorf("open topology file: %w", err)
	}
	defer topoFh.Close()

	g, err := biftbuilder.ParseAdjacency(topoFh)
	if err != nil {
		return fmt.Errorf("parse topology: %w", err)
	}

	mapFh, err := os.Open(node2ipv6)
	if err != nil {
		return fmt.Errorf("open node2ipv6 file: %w", err)
	}
	defer mapFh.Close()

	if err := g.LoadLoopbacks(mapFh); err != nil {
		return fmt.Errorf("load loopback mapping: %w", err)
	}

	states, err := biftbuilder.Build(g)
	if err != nil {
		return fmt.Errorf("build BIFTs: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, state := range states {
		data, err := bift.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal BIFT for node %d: %w", i, err)
		}

		name := biftbuilder.OutputName(topoFile, i)
		outPath := filepath.Join(outputDir, name)
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
