// Package envelope implements the control envelope codec: the
// length-prefixed local framing by which applications submit packets to,
// and receive packets from, the daemon over a named datagram endpoint.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// headerSize is the fixed envelope prefix: bift_id(4) + proto(2) +
// bitstring_length(2).
const headerSize = 8

// ErrSliceWrongLength indicates the buffer is shorter than
// headerSize+bitstring_length, i.e. the envelope is truncated.
var ErrSliceWrongLength = errors.New("envelope: slice wrong length")

// Envelope is the decoded form of a control envelope.
type Envelope struct {
	BiftID    uint32
	Proto     uint16
	Bitstring []byte
	Payload   []byte
}

// Parse decodes buf as `bift_id(u32 BE) | proto(u16 BE) |
// bitstring_length(u16 BE) | bitstring | payload`. It fails with
// ErrSliceWrongLength if buf is shorter than 8+bitstring_length.
func Parse(buf []byte) (Envelope, error) {
	if len(buf) < headerSize {
		return Envelope{}, fmt.Errorf("envelope parse (len=%d): %w", len(buf), ErrSliceWrongLength)
	}

	biftID := binary.BigEndian.Uint32(buf[0:4])
	proto := binary.BigEndian.Uint16(buf[4:6])
	bsLen := binary.BigEndian.Uint16(buf[6:8])

	need := headerSize + int(bsLen)
	if len(buf) < need {
		return Envelope{}, fmt.Errorf("envelope parse (need %d, have %d): %w", need, len(buf), ErrSliceWrongLength)
	}

	bs := make([]byte, bsLen)
	copy(bs, buf[headerSize:need])

	payload := make([]byte, len(buf)-need)
	copy(payload, buf[need:])

	return Envelope{
		BiftID:    biftID,
		Proto:     proto,
		Bitstring: bs,
		Payload:   payload,
	}, nil
}

// Marshal is the inverse of Parse: it emits the envelope's wire form.
func (e Envelope) Marshal() []byte {
	out := make([]byte, headerSize+len(e.Bitstring)+len(e.Payload))
	binary.BigEndian.PutUint32(out[0:4], e.BiftID)
	binary.BigEndian.PutUint16(out[4:6], e.Proto)
	binary.BigEndian.PutUint16(out[6:8], uint16(len(e.Bitstring)))
	copy(out[headerSize:], e.Bitstring)
	copy(out[headerSize+len(e.Bitstring):], e.Payload)
	return out
}
