// Package bierhdr implements the BIER header codec: bit-exact parsing and
// emission of the 20+8W byte wire header carried over the raw IPv6
// forwarding endpoint (RFC 8279 Section 2, reference header.rs).
package bierhdr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dantte-lp/gobier/internal/bitstring"
	"github.com/dantte-lp/gobier/internal/envelope"
)

// MinHeaderSize is the shortest buffer FromBytes accepts: the 12-byte
// fixed portion preceding the bitstring (BIFT-ID/TC/S (3) + TTL (1) +
// Nibble/Version (1) + BSL/Entropy (1) + Entropy (2) + OAM/Rsv/DSCP (1) +
// DSCP/Proto (1) + BFR-ID (2)) plus the smallest, 8-byte, bitstring.
const MinHeaderSize = 20

// bitstringOffset is the byte offset at which the bitstring region begins.
const bitstringOffset = 12

// ErrHeaderTooShort indicates a buffer shorter than MinHeaderSize, or
// shorter than the width implied by its own BSL field.
var ErrHeaderTooShort = errors.New("bierhdr: buffer too short for header")

// ErrInvalidBSL indicates a BSL code whose derived bitstring width is not
// one of the valid RFC 8279 widths.
var ErrInvalidBSL = errors.New("bierhdr: invalid BSL")

// Header is the decoded form of a BIER packet header.
type Header struct {
	BiftID    uint32 // 20 bits on the wire
	TC        uint8  // 3 bits
	S         uint8  // 1 bit
	TTL       uint8
	Nibble    uint8 // 4 bits
	Version   uint8 // 4 bits
	BSL       uint8 // 4 bits
	Entropy   uint32 // 20 bits
	OAM       uint8  // 2 bits
	Rsv       uint8  // 2 bits
	DSCP      uint8  // 6 bits
	Proto     uint8  // 6 bits
	BFRID     uint16
	Bitstring bitstring.Bitstring
}

// bslToByteWidth maps a BSL code (1..6) to the RFC 8279 bitstring byte
// width: bits = 1 << (BSL+5), bytes = bits/8.
func bslToByteWidth(bsl uint8) (int, bool) {
	if bsl < 1 || bsl > 6 {
		return 0, false
	}
	bits := 1 << (uint(bsl) + 5)
	width := bits / 8
	if !bitstring.IsValidWidth(width) {
		return 0, false
	}
	return width, true
}

// byteWidthToBSL is the inverse of bslToByteWidth, used by FromEnvelope.
func byteWidthToBSL(width int) (uint8, bool) {
	switch width {
	case 8:
		return 1, true
	case 16:
		return 2, true
	case 32:
		return 3, true
	case 64:
		return 4, true
	case 128:
		return 5, true
	case 256:
		return 6, true
	default:
		return 0, false
	}
}

// HeaderLength returns 12 + 8*W, the total encoded length of h including
// its bitstring.
func (h Header) HeaderLength() int {
	return bitstringOffset + h.Bitstring.ByteWidth()
}

// FromBytes parses a BIER header from buf. It requires len(buf) >= 20 to
// read the BSL field, derives the bitstring width W, requires
// len(buf) >= 12+8W, and parses the bitstring region via the bitstring
// package.
func FromBytes(buf []byte) (Header, error) {
	if len(buf) < MinHeaderSize {
		return Header{}, fmt.Errorf("header from bytes (len=%d): %w", len(buf), ErrHeaderTooShort)
	}

	bsl := (buf[5] >> 4) & 0x0F
	width, ok := bslToByteWidth(bsl)
	if !ok {
		return Header{}, fmt.Errorf("header from bytes (bsl=%d): %w", bsl, ErrInvalidBSL)
	}

	need := bitstringOffset + width
	if len(buf) < need {
		return Header{}, fmt.Errorf("header from bytes (need %d, have %d): %w", need, len(buf), ErrHeaderTooShort)
	}

	b012 := uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	h := Header{
		BiftID:  b012 >> 4,
		TC:      uint8(b012>>1) & 0x07,
		S:       uint8(b012) & 0x01,
		TTL:     buf[3],
		Nibble:  (buf[4] >> 4) & 0x0F,
		Version: buf[4] & 0x0F,
		BSL:     bsl,
		Entropy: uint32(buf[5]&0x0F)<<16 | uint32(binary.BigEndian.Uint16(buf[6:8])),
		OAM:     (buf[8] >> 6) & 0x03,
		Rsv:     (buf[8] >> 4) & 0x03,
		DSCP:    (buf[8]&0x0F)<<2 | (buf[9]>>6)&0x03,
		Proto:   buf[9] & 0x3F,
		BFRID:   binary.BigEndian.Uint16(buf[10:12]),
	}

	bs, err := bitstring.FromBytes(buf[bitstringOffset:need])
	if err != nil {
		return Header{}, fmt.Errorf("header from bytes: bitstring: %w", err)
	}
	h.Bitstring = bs
	return h, nil
}

// ToBytes packs h into buf exactly per the wire layout, requiring
// len(buf) >= h.HeaderLength().
func (h Header) ToBytes(buf []byte) error {
	need := h.HeaderLength()
	if len(buf) < need {
		return fmt.Errorf("header to bytes (need %d, have %d): %w", need, len(buf), ErrHeaderTooShort)
	}

	b012 := (h.BiftID&0xFFFFF)<<4 | uint32(h.TC&0x07)<<1 | uint32(h.S&0x01)
	buf[0] = byte(b012 >> 16)
	buf[1] = byte(b012 >> 8)
	buf[2] = byte(b012)
	buf[3] = h.TTL
	buf[4] = (h.Nibble&0x0F)<<4 | h.Version&0x0F
	buf[5] = (h.BSL&0x0F)<<4 | byte((h.Entropy>>16)&0x0F)
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Entropy&0xFFFF))
	buf[8] = (h.OAM&0x03)<<6 | (h.Rsv&0x03)<<4 | (h.DSCP>>2)&0x0F
	buf[9] = (h.DSCP&0x03)<<6 | h.Proto&0x3F
	binary.BigEndian.PutUint16(buf[10:12], h.BFRID)

	return h.Bitstring.WriteIntoHeader(buf)
}

// FromEnvelope builds a Header from a parsed control envelope: BiftID and
// the low 6 bits of Proto are copied, BSL is derived from the bitstring
// length, and all other fields are zero.
func FromEnvelope(env envelope.Envelope) (Header, error) {
	bs, err := bitstring.FromBytes(env.Bitstring)
	if err != nil {
		return Header{}, fmt.Errorf("header from envelope: %w", err)
	}
	bsl, ok := byteWidthToBSL(len(env.Bitstring))
	if !ok {
		return Header{}, fmt.Errorf("header from envelope (bitstring len=%d): %w", len(env.Bitstring), ErrInvalidBSL)
	}
	return Header{
		BiftID:    env.BiftID,
		Proto:     uint8(env.Proto) & 0x3F,
		BSL:       bsl,
		Bitstring: bs,
	}, nil
}
