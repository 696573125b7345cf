// Package biftbuilder computes per-node Bit Index Forwarding Tables from a
// link-weighted topology: per-source-node shortest-path trees, the
// backward predecessor walk that derives ECMP next hops, and the F-BM
// aggregation that lets one table entry cover every destination sharing a
// next hop (reference bier-config.rs).
package biftbuilder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
)

// ErrParse indicates the adjacency or node-mapping input could not be
// parsed into a topology.
var ErrParse = errors.New("biftbuilder: parse error")

// Graph is a short-lived in-memory topology: nodes assigned stable
// zero-based indices in the order they are first encountered in the
// adjacency file, which double as BFR-ID minus one.
type Graph struct {
	// Names preserves first-encounter order; Names[i] is node i's label
	// from the adjacency file.
	Names []string
	// Adjacency[i] lists node i's neighbors as (neighbor index, metric).
	Adjacency [][]edge
	// Loopbacks[i] is node i's loopback address.
	Loopbacks []netip.Addr
}

type edge struct {
	to     int
	metric int
}

// NumNodes returns the number of nodes in g.
func (g *Graph) NumNodes() int {
	return len(g.Names)
}

// ParseAdjacency reads whitespace-separated `<a> <b> <metric> [rest…]`
// lines (empty lines ignored), building an undirected weighted graph.
// Nodes receive zero-based indices in first-encounter order.
func ParseAdjacency(r io.Reader) (*Graph, error) {
	g := &Graph{}
	index := make(map[string]int)

	ensureNode := func(name string) int {
		if idx, ok := index[name]; ok {
			return idx
		}
		idx := len(g.Names)
		index[name] = idx
		g.Names = append(g.Names, name)
		g.Adjacency = append(g.Adjacency, nil)
		return idx
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("biftbuilder: adjacency line %d has fewer than 3 fields: %w", lineNo, ErrParse)
		}
		metric, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("biftbuilder: adjacency line %d metric %q: %w", lineNo, fields[2], ErrParse)
		}
		a := ensureNode(fields[0])
		b := ensureNode(fields[1])
		g.Adjacency[a] = append(g.Adjacency[a], edge{to: b, metric: metric})
		g.Adjacency[b] = append(g.Adjacency[b], edge{to: a, metric: metric})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("biftbuilder: reading adjacency: %w", err)
	}
	return g, nil
}

// LoadLoopbacks reads `<index> <addr/prefix>` lines, indices ascending
// from 0, and assigns g.Loopbacks in that order. It must be called after
// ParseAdjacency has established node count and order.
func (g *Graph) LoadLoopbacks(r io.Reader) error {
	loopbacks := make([]netip.Addr, 0, g.NumNodes())
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("biftbuilder: node2ipv6 line %d has fewer than 2 fields: %w", lineNo, ErrParse)
		}
		addrPart := strings.SplitN(fields[1], "/", 2)[0]
		addr, err := netip.ParseAddr(addrPart)
		if err != nil {
			return fmt.Errorf("biftbuilder: node2ipv6 line %d address %q: %w", lineNo, addrPart, ErrParse)
		}
		loopbacks = append(loopbacks, addr)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("biftbuilder: reading node2ipv6: %w", err)
	}
	if len(loopbacks) < g.NumNodes() {
		return fmt.Errorf("biftbuilder: node2ipv6 has %d entries, need %d: %w", len(loopbacks), g.NumNodes(), ErrParse)
	}
	g.Loopbacks = loopbacks
	return nil
}
