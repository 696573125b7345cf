// Package netio implements the I/O shell: a raw IPv6 endpoint carrying
// BIER packets under a reserved IP protocol number, a local datagram
// endpoint receiving control envelopes from applications, and an optional
// local datagram endpoint for decapsulated local deliveries, driven by an
// event loop that reads each inbound endpoint on its own goroutine.
package netio

import (
	"errors"
	"net/netip"
)

// -------------------------------------------------------------------------
// Transport Metadata
// -------------------------------------------------------------------------

// PacketMeta contains transport-layer metadata extracted from a received
// BIER packet. BIER forwarding has no TTL/GTSM requirement and no
// destination-address-based demultiplexing — only the source address and
// receive interface matter, for logging.
type PacketMeta struct {
	// SrcAddr is the source IPv6 address from the IP header.
	SrcAddr netip.Addr

	// IfIndex is the interface index on which the packet was received.
	IfIndex int
}

// -------------------------------------------------------------------------
// PacketConn Interface
// -------------------------------------------------------------------------

// PacketConn abstracts BIER packet send/receive operations over a raw
// IPv6 socket bound to the reserved protocol number (253 in the
// reference deployment). The interface is intentionally
// minimal to allow mock implementations for testing without CAP_NET_RAW.
type PacketConn interface {
	// ReadPacket reads a single BIER packet into buf. Returns the number
	// of bytes read and transport metadata.
	ReadPacket(buf []byte) (n int, meta PacketMeta, err error)

	// WritePacket sends a BIER packet to the given destination.
	WritePacket(buf []byte, dst netip.Addr) error

	// Close releases the underlying socket resources.
	Close() error

	// LocalAddr returns the local address the socket is bound to.
	LocalAddr() netip.Addr
}

// -------------------------------------------------------------------------
// Sentinel Errors
// -------------------------------------------------------------------------

var (
	// ErrSocketClosed indicates an operation on a closed socket.
	ErrSocketClosed = errors.New("netio: socket closed")

	// ErrUnexpectedConnType indicates ListenPacket returned a connection
	// type the raw IPv6 endpoint does not know how to configure.
	ErrUnexpectedConnType = errors.New("netio: unexpected connection type from ListenPacket")
)
