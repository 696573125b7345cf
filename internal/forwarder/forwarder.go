// Package forwarder implements the BIER replication algorithm: given an
// inbound bitstring and a BIFT, it produces the set of (bitstring,
// next-hop) duplications that preserve RFC 8279 Section 6.5 forwarding
// semantics, specialized to first-path-only ECMP.
package forwarder

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gobier/internal/bift"
	"github.com/dantte-lp/gobier/internal/bitstring"
)

// ErrUnknownBift indicates the requested BIFT-ID is out of range.
var ErrUnknownBift = errors.New("forwarder: unknown bift")

// ErrMissingEntry indicates a set bit in the inbound bitstring has no
// corresponding BIFT entry, or an entry with no paths.
var ErrMissingEntry = errors.New("forwarder: missing entry")

// ErrUnsupportedBiftType indicates the BIFT's type code is not BIER; the
// BIER-TE variant is recognized but rejected.
var ErrUnsupportedBiftType = errors.New("forwarder: unsupported bift type")

// Duplication is one output of Process: a destination bitstring paired
// with the next hop it should be sent to, or a nil NextHop meaning "this
// node is a destination" (local delivery).
type Duplication struct {
	Bitstring bitstring.Bitstring
	NextHop   *netip.Addr
}

// Process runs the RFC 8279 Section 6.5 replication algorithm over in,
// using the BIFT identified by biftID within state. It walks the working
// set least-significant-word first, and for each set bit looks up the
// BIFT entry, takes its first path (paths[0], first-path-only ECMP),
// restricts the duplication to that path's F-BM, and clears the
// dispatched bits from the working set before continuing — re-reading the
// current word each time, since clearing bits can unset bits later in the
// same word that haven't been visited yet.
func Process(state bift.State, biftID int, in bitstring.Bitstring) ([]Duplication, error) {
	b, ok := state.Bift(biftID)
	if !ok {
		return nil, fmt.Errorf("process (bift_id=%d): %w", biftID, ErrUnknownBift)
	}
	if b.Type != bift.TypeBIER {
		return nil, fmt.Errorf("process (bift_id=%d, type=%s): %w", biftID, b.Type, ErrUnsupportedBiftType)
	}

	ws := in.Clone()
	var result []Duplication

	numWords := ws.Words()
	for wordRev := 0; wordRev < numWords; wordRev++ {
		for {
			bit, ok := nextSetBitInWord(ws, wordRev)
			if !ok {
				break
			}

			entry, ok := b.Entry(bit)
			if !ok || len(entry.Paths) == 0 {
				return nil, fmt.Errorf("process (bift_id=%d, bit=%d): %w", biftID, bit, ErrMissingEntry)
			}
			path := entry.Paths[0]

			dst := bitstring.And(ws, path.FBM)

			var nh *netip.Addr
			if bit != b.BFRID {
				addr := path.NextHop
				nh = &addr
			}

			result = append(result, Duplication{Bitstring: dst, NextHop: nh})

			ws.Update(path.FBM, bitstring.ANDNOT)
		}
	}

	return result, nil
}

// nextSetBitInWord returns the lowest-numbered set bit (1-based, per BFR-ID
// numbering) within the word at reversed index wordRev of ws — that is,
// the word at ws.Words()-1-wordRev, read least-significant-word first —
// or false if that word is now zero. Re-deriving the word on every call
// (rather than caching it) is what makes the engine notice bits cleared
// by an earlier iteration within the same word.
func nextSetBitInWord(ws bitstring.Bitstring, wordRev int) (int, bool) {
	base := wordRev*64 + 1
	for offset := 0; offset < 64; offset++ {
		bit := base + offset
		if ws.BitSet(bit) {
			return bit, true
		}
	}
	return 0, false
}
