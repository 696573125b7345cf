// Package bift models a BFR's forwarding tables: the in-memory
// representation loaded once at daemon startup and shared read-only with
// the forwarding engine, plus its JSON wire schema.
package bift

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gobier/internal/bitstring"
)

// Type distinguishes a BIFT's forwarding semantics.
type Type int

const (
	// TypeBIER is the standard RFC 8279 forwarding table.
	TypeBIER Type = 1
	// TypeBIERTE is the traffic-engineered variant; recognized but
	// rejected by the forwarding engine.
	TypeBIERTE Type = 2
)

// String renders t for logging.
func (t Type) String() string {
	switch t {
	case TypeBIER:
		return "BIER"
	case TypeBIERTE:
		return "BIER-TE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// ErrMalformedConfig indicates the loaded JSON violates one of the
// structural invariants the loader must establish (bifts[i].bift_id ==
// i+1, entries[i].bit == i+1).
var ErrMalformedConfig = errors.New("bift: malformed configuration")

// Path is one ECMP candidate for a destination bit: an F-BM restricting
// the duplication's destination set, and the next hop it is sent to.
type Path struct {
	FBM     bitstring.Bitstring
	NextHop netip.Addr
}

// Entry holds the ordered ECMP paths for one destination bit.
type Entry struct {
	Bit   int // 1-based
	Paths []Path
}

// Bift is one Bit Index Forwarding Table, keyed by BiftID.
type Bift struct {
	BiftID int
	Type   Type
	BFRID  int // 1-based own position in this table's sub-domain
	Entries []Entry
}

// Entry returns the entry for destination bit k (1-based), or false if
// none exists — the MissingEntry condition of the error taxonomy.
func (b Bift) Entry(k int) (Entry, bool) {
	idx := k - 1
	if idx < 0 || idx >= len(b.Entries) {
		return Entry{}, false
	}
	e := b.Entries[idx]
	if e.Bit != k {
		return Entry{}, false
	}
	return e, true
}

// State is a BFR's complete, read-only configuration: its loopback
// address and the set of BIFTs it serves, loaded once from a
// configuration file at daemon start and shared immutably thereafter.
type State struct {
	Loopback netip.Addr
	Bifts    []Bift
}

// Bift returns the BIFT for biftID (1-based), or false if biftID is out
// of range — the UnknownBift condition.
func (s State) Bift(biftID int) (Bift, bool) {
	idx := biftID - 1
	if idx < 0 || idx >= len(s.Bifts) {
		return Bift{}, false
	}
	b := s.Bifts[idx]
	if b.BiftID != biftID {
		return Bift{}, false
	}
	return b, true
}

// --- JSON wire schema ---

type wirePath struct {
	Bitstring string `json:"bitstring"`
	NextHop   string `json:"next_hop"`
}

type wireEntry struct {
	Bit   int        `json:"bit"`
	Paths []wirePath `json:"paths"`
}

type wireBift struct {
	BiftID  int         `json:"bift_id"`
	Type    int         `json:"bift_type"`
	BFRID   int         `json:"bfr_id"`
	Entries []wireEntry `json:"entries"`
}

type wireState struct {
	Loopback string     `json:"loopback"`
	Bifts    []wireBift `json:"bifts"`
}

// Unmarshal parses the configuration-file JSON schema into a State,
// establishing the structural invariants bifts[i].bift_id==i+1 and
// entries[i].bit==i+1 at load time.
func Unmarshal(data []byte) (State, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return State{}, fmt.Errorf("bift unmarshal: %w", err)
	}

	loopback, err := netip.ParseAddr(w.Loopback)
	if err != nil {
		return State{}, fmt.Errorf("bift unmarshal: loopback %q: %w", w.Loopback, err)
	}

	bifts := make([]Bift, len(w.Bifts))
	for i, wb := range w.Bifts {
		if wb.BiftID != i+1 {
			return State{}, fmt.Errorf("bift unmarshal: bifts[%d].bift_id=%d, want %d: %w", i, wb.BiftID, i+1, ErrMalformedConfig)
		}
		entries := make([]Entry, len(wb.Entries))
		for j, we := range wb.Entries {
			if we.Bit != j+1 {
				return State{}, fmt.Errorf("bift unmarshal: bifts[%d].entries[%d].bit=%d, want %d: %w", i, j, we.Bit, j+1, ErrMalformedConfig)
			}
			paths := make([]Path, len(we.Paths))
			for k, wp := range we.Paths {
				bs, err := bitstring.FromText(wp.Bitstring)
				if err != nil {
					return State{}, fmt.Errorf("bift unmarshal: bifts[%d].entries[%d].paths[%d].bitstring: %w", i, j, k, err)
				}
				nh, err := netip.ParseAddr(wp.NextHop)
				if err != nil {
					return State{}, fmt.Errorf("bift unmarshal: bifts[%d].entries[%d].paths[%d].next_hop %q: %w", i, j, k, wp.NextHop, err)
				}
				paths[k] = Path{FBM: bs, NextHop: nh}
			}
			entries[j] = Entry{Bit: we.Bit, Paths: paths}
		}
		bifts[i] = Bift{
			BiftID:  wb.BiftID,
			Type:    Type(wb.Type),
			BFRID:   wb.BFRID,
			Entries: entries,
		}
	}

	return State{Loopback: loopback, Bifts: bifts}, nil
}

// Marshal serializes s back to the configuration-file JSON schema.
// Bitstrings are rendered as 64-bit-padded binary strings, so
// Unmarshal(Marshal(s)) normalizes any bitstring width to a multiple of
// 64 bits (property 7's documented normalization).
func Marshal(s State) ([]byte, error) {
	w := wireState{
		Loopback: s.Loopback.String(),
		Bifts:    make([]wireBift, len(s.Bifts)),
	}
	for i, b := range s.Bifts {
		we := make([]wireEntry, len(b.Entries))
		for j, e := range b.Entries {
			wp := make([]wirePath, len(e.Paths))
			for k, p := range e.Paths {
				wp[k] = wirePath{
					Bitstring: bitstringToText(p.FBM),
					NextHop:   p.NextHop.String(),
				}
			}
			we[j] = wireEntry{Bit: e.Bit, Paths: wp}
		}
		w.Bifts[i] = wireBift{
			BiftID:  b.BiftID,
			Type:    int(b.Type),
			BFRID:   b.BFRID,
			Entries: we,
		}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("bift marshal: %w", err)
	}
	return data, nil
}

// bitstringToText renders bs as a big-endian binary string, one character
// per bit, MSB first — the inverse of bitstring.FromText.
func bitstringToText(bs bitstring.Bitstring) string {
	buf := make([]byte, 0, bs.Words()*64)
	for k := bs.Words() * 64; k >= 1; k-- {
		if bs.BitSet(k) {
			buf = append(buf, '1')
		} else {
			buf = append(buf, '0')
		}
	}
	return string(buf)
}
