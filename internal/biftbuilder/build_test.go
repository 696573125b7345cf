package biftbuilder

import (
	"strings"
	"testing"
)

// diamondTailAdjacency is a five-node diamond+tail topology with two
// ECMP paths through the diamond: a-b, a-c, b-d, c-d, d-e, all weight 1.
const diamondTailAdjacency = `a b 1
a c 1
b d 1
c d 1
d e 1
`

const diamondTailLoopbacks = `0 babe:cafe::1
1 babe:cafe:1::1
2 babe:cafe:2::1
3 babe:cafe:3::1
4 babe:cafe:4::1
`

func mustGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := ParseAdjacency(strings.NewReader(diamondTailAdjacency))
	if err != nil {
		t.Fatalf("ParseAdjacency: %v", err)
	}
	if err := g.LoadLoopbacks(strings.NewReader(diamondTailLoopbacks)); err != nil {
		t.Fatalf("LoadLoopbacks: %v", err)
	}
	return g
}

func TestParseAdjacencyAssignsFirstEncounterOrder(t *testing.T) {
	g := mustGraph(t)
	want := []string{"a", "b", "c", "d", "e"}
	if len(g.Names) != len(want) {
		t.Fatalf("len(Names) = %d, want %d", len(g.Names), len(want))
	}
	for i, name := range want {
		if g.Names[i] != name {
			t.Errorf("Names[%d] = %q, want %q", i, g.Names[i], name)
		}
	}
}

// TestBuildDiamondTailECMP checks the diamond+tail BIFT for node a (index 0):
// bit1 self, bit2 via b, bit3 via c, bit4/bit5 via both b and c (ECMP).
func TestBuildDiamondTailECMP(t *testing.T) {
	g := mustGraph(t)
	states, err := Build(g)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(states) != 5 {
		t.Fatalf("len(states) = %d, want 5", len(states))
	}

	stateA := states[0]
	if stateA.Loopback.String() != "babe:cafe::1" {
		t.Errorf("node a loopback = %s", stateA.Loopback)
	}
	biftA, ok := stateA.Bift(1)
	if !ok {
		t.Fatal("node a: Bift(1) not found")
	}
	if biftA.BFRID != 1 {
		t.Errorf("node a BFRID = %d, want 1", biftA.BFRID)
	}

	e1, _ := biftA.Entry(1)
	if len(e1.Paths) != 1 || e1.Paths[0].NextHop.String() != "babe:cafe::1" {
		t.Errorf("bit1 (self) paths = %+v", e1.Paths)
	}

	e2, _ := biftA.Entry(2)
	if len(e2.Paths) != 1 || e2.Paths[0].NextHop.String() != "babe:cafe:1::1" {
		t.Errorf("bit2 paths = %+v, want single path via babe:cafe:1::1", e2.Paths)
	}

	e3, _ := biftA.Entry(3)
	if len(e3.Paths) != 1 || e3.Paths[0].NextHop.String() != "babe:cafe:2::1" {
		t.Errorf("bit3 paths = %+v, want single path via babe:cafe:2::1", e3.Paths)
	}

	for _, bit := range []int{4, 5} {
		e, _ := biftA.Entry(bit)
		if len(e.Paths) != 2 {
			t.Fatalf("bit%d has %d paths, want 2 (ECMP)", bit, len(e.Paths))
		}
		hops := map[string]bool{}
		for _, p := range e.Paths {
			hops[p.NextHop.String()] = true
		}
		if !hops["babe:cafe:1::1"] || !hops["babe:cafe:2::1"] {
			t.Errorf("bit%d next hops = %v, want {babe:cafe:1::1, babe:cafe:2::1}", bit, hops)
		}
	}
}

func TestOutputName(t *testing.T) {
	got := OutputName("/tmp/topo/diamond.txt", 3)
	if got != "diamond-3.json" {
		t.Errorf("OutputName = %q, want %q", got, "diamond-3.json")
	}
}

func TestParseAdjacencyRejectsShortLine(t *testing.T) {
	if _, err := ParseAdjacency(strings.NewReader("a b\n")); err == nil {
		t.Fatal("expected error for line with fewer than 3 fields")
	}
}
