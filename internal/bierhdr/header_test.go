package bierhdr

import (
	"bytes"
	"testing"

	"github.com/dantte-lp/gobier/internal/bitstring"
	"github.com/dantte-lp/gobier/internal/envelope"
)

// TestFromBytesValidatesBSLAgainstLength checks that a 20-byte input with
// byte 5 = 0x10 parses with BSL=1, W=1; the same buffer with byte 5 = 0x20
// (BSL=2, needs 28 bytes) fails.
func TestFromBytesValidatesBSLAgainstLength(t *testing.T) {
	buf := make([]byte, 20)
	buf[5] = 0x10
	h, err := FromBytes(buf)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if h.BSL != 1 {
		t.Errorf("BSL = %d, want 1", h.BSL)
	}
	if h.Bitstring.Words() != 1 {
		t.Errorf("Words() = %d, want 1", h.Bitstring.Words())
	}

	buf2 := make([]byte, 20)
	buf2[5] = 0x20
	if _, err := FromBytes(buf2); err == nil {
		t.Fatal("expected HeaderParse error for BSL=2 with only 20 bytes")
	}
}

// TestRoundTrip covers property 2: for every valid header, to_bytes
// followed by from_bytes yields an equal header, and bytewise the output
// buffer equals the input.
func TestRoundTrip(t *testing.T) {
	h := Header{
		BiftID:  0xABCDE,
		TC:      5,
		S:       1,
		TTL:     64,
		Nibble:  0xA,
		Version: 1,
		BSL:     1,
		Entropy: 0xABCDE & 0xFFFFF,
		OAM:     2,
		Rsv:     1,
		DSCP:    0x2A,
		Proto:   36,
		BFRID:   7,
	}
	bs, err := bitstring.FromBytes(make([]byte, 8))
	if err != nil {
		t.Fatal(err)
	}
	h.Bitstring = bs

	buf := make([]byte, h.HeaderLength())
	if err := h.ToBytes(buf); err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	got, err := FromBytes(buf)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	buf2 := make([]byte, got.HeaderLength())
	if err := got.ToBytes(buf2); err != nil {
		t.Fatalf("ToBytes (roundtrip): %v", err)
	}
	if !bytes.Equal(buf, buf2) {
		t.Errorf("round trip bytes mismatch: %x vs %x", buf, buf2)
	}
	if got.BiftID != h.BiftID || got.TC != h.TC || got.S != h.S || got.TTL != h.TTL ||
		got.Nibble != h.Nibble || got.Version != h.Version || got.BSL != h.BSL ||
		got.Entropy != h.Entropy || got.OAM != h.OAM || got.Rsv != h.Rsv ||
		got.DSCP != h.DSCP || got.Proto != h.Proto || got.BFRID != h.BFRID {
		t.Errorf("round trip field mismatch: got %+v want %+v", got, h)
	}
}

// TestFromEnvelopeBSLConsistency covers property 3: from_envelope produces
// a header whose HeaderLength equals 12+len(bitstring) and whose BSL
// satisfies 1<<(BSL+5) == 8*len(bitstring) bits.
func TestFromEnvelopeBSLConsistency(t *testing.T) {
	env := envelope.Envelope{
		BiftID:    1,
		Proto:     36,
		Bitstring: make([]byte, 16),
	}
	h, err := FromEnvelope(env)
	if err != nil {
		t.Fatalf("FromEnvelope: %v", err)
	}
	if h.HeaderLength() != 12+len(env.Bitstring) {
		t.Errorf("HeaderLength() = %d, want %d", h.HeaderLength(), 12+len(env.Bitstring))
	}
	wantBits := 8 * len(env.Bitstring)
	if (1 << (uint(h.BSL) + 5)) != wantBits {
		t.Errorf("BSL=%d implies %d bits, want %d", h.BSL, 1<<(uint(h.BSL)+5), wantBits)
	}
}

func TestFromBytesTooShort(t *testing.T) {
	if _, err := FromBytes(make([]byte, 19)); err == nil {
		t.Fatal("expected error for buffer under MinHeaderSize")
	}
}
