package biftbuilder

import (
	"fmt"
	"path"

	"github.com/dantte-lp/gobier/internal/bift"
	"github.com/dantte-lp/gobier/internal/bitstring"
)

// byteWidthForNodes returns the smallest valid RFC 8279 byte width that
// can hold n destination bits.
func byteWidthForNodes(n int) (int, error) {
	for _, w := range []int{8, 16, 32, 64, 128, 256} {
		if w*8 >= n {
			return w, nil
		}
	}
	return 0, fmt.Errorf("biftbuilder: %d nodes exceed the largest RFC 8279 bitstring width", n)
}

// forwardingBitMasks computes, for a source node and its per-destination
// next-hop sets, the Bitstring F-BM for each distinct next hop: the OR of
// {1 << d : h ∈ nextHopSets[d]} over all destinations d. This is the
// aggregation step that lets one BIFT entry serve every destination
// sharing a next hop.
func forwardingBitMasks(nextHopSets [][]int, byteWidth int) (map[int]bitstring.Bitstring, error) {
	fbms := make(map[int]bitstring.Bitstring)
	for d, hops := range nextHopSets {
		for _, h := range hops {
			fbm, ok := fbms[h]
			if !ok {
				var err error
				fbm, err = bitstring.New(byteWidth)
				if err != nil {
					return nil, err
				}
			}
			bit, err := bitstring.New(byteWidth, d+1)
			if err != nil {
				return nil, err
			}
			fbms[h] = bitstring.Or(fbm, bit)
		}
	}
	return fbms, nil
}

// Build runs the BIFT construction algorithm over g,
// one run of Dijkstra per source node, and returns one bift.State per
// node, indexed by the node's zero-based index (which is BFR-ID minus 1).
func Build(g *Graph) ([]bift.State, error) {
	n := g.NumNodes()
	byteWidth, err := byteWidthForNodes(n)
	if err != nil {
		return nil, err
	}

	states := make([]bift.State, n)

	for s := 0; s < n; s++ {
		predecessors := shortestPaths(g, s)

		nextHopSets := make([][]int, n)
		for d := 0; d < n; d++ {
			nextHopSets[d] = nextHops(predecessors, s, d)
		}

		fbms, err := forwardingBitMasks(nextHopSets, byteWidth)
		if err != nil {
			return nil, err
		}

		entries := make([]bift.Entry, n)
		for b := 0; b < n; b++ {
			var paths []bift.Path
			for _, h := range nextHopSets[b] {
				paths = append(paths, bift.Path{
					FBM:     fbms[h],
					NextHop: g.Loopbacks[h],
				})
			}
			entries[b] = bift.Entry{Bit: b + 1, Paths: paths}
		}

		states[s] = bift.State{
			Loopback: g.Loopbacks[s],
			Bifts: []bift.Bift{
				{
					BiftID:  1,
					Type:    bift.TypeBIER,
					BFRID:   s + 1,
					Entries: entries,
				},
			},
		}
	}

	return states, nil
}

// OutputName derives the per-node output file name `<stem>-<idx>.json`
// for nodeIndex from a topology file path.
func OutputName(topoFilePath string, nodeIndex int) string {
	base := path.Base(topoFilePath)
	ext := path.Ext(base)
	stem := base[:len(base)-len(ext)]
	return fmt.Sprintf("%s-%d.json", stem, nodeIndex)
}
