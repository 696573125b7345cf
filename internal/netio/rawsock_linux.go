//go:build linux

package netio

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// -------------------------------------------------------------------------
// LinuxPacketConn — raw IPv6 endpoint
// -------------------------------------------------------------------------

// LinuxPacketConn implements PacketConn over a raw IPv6 socket bound to a
// reserved protocol number, wrapping golang.org/x/net/ipv6's PacketConn to
// read per-datagram interface and source-address ancillary data.
type LinuxPacketConn struct {
	pconn     *ipv6.PacketConn
	localAddr netip.Addr
	ifName    string
	closed    bool
	mu        sync.Mutex
}

// ReadPacket reads a single BIER packet from the raw IPv6 socket.
func (c *LinuxPacketConn) ReadPacket(buf []byte) (int, PacketMeta, error) {
	n, cm, src, err := c.pconn.ReadFrom(buf)
	if err != nil {
		return 0, PacketMeta{}, fmt.Errorf("read BIER packet: %w", err)
	}

	meta := PacketMeta{}
	if ipAddr, ok := src.(*net.IPAddr); ok {
		if addr, ok := netip.AddrFromSlice(ipAddr.IP); ok {
			meta.SrcAddr = addr.Unmap()
		}
	}
	if cm != nil {
		meta.IfIndex = cm.IfIndex
	}

	return n, meta, nil
}

// WritePacket sends a BIER packet to the given destination address.
func (c *LinuxPacketConn) WritePacket(buf []byte, dst netip.Addr) error {
	addr := &net.IPAddr{IP: dst.AsSlice()}

	_, err := c.pconn.WriteTo(buf, nil, addr)
	if err != nil {
		return fmt.Errorf("write BIER packet to %s: %w", dst, err)
	}
	return nil
}

// Close releases the underlying socket.
func (c *LinuxPacketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.pconn.Close(); err != nil {
		return fmt.Errorf("close raw IPv6 socket: %w", err)
	}
	return nil
}

// LocalAddr returns the address the socket is bound to.
func (c *LinuxPacketConn) LocalAddr() netip.Addr {
	return c.localAddr
}

// -------------------------------------------------------------------------
// Constructor
// -------------------------------------------------------------------------

// NewRawIPv6Conn creates a PacketConn for BIER forwarding over a raw IPv6
// socket bound to addr under the given IP protocol number (253 in the
// reference deployment). When ifName is non-empty the
// socket is bound to that interface via SO_BINDTODEVICE.
func NewRawIPv6Conn(ctx context.Context, addr netip.Addr, ifName string, protocol int) (*LinuxPacketConn, error) {
	network := fmt.Sprintf("ip6:%d", protocol)

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setRawSocketOpts(c, ifName)
		},
	}

	pc, err := lc.ListenPacket(ctx, network, addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen raw IPv6 %s (proto %d): %w", addr, protocol, err)
	}

	ipv6pc := ipv6.NewPacketConn(pc)
	if err := ipv6pc.SetControlMessage(ipv6.FlagInterface|ipv6.FlagSrc, true); err != nil {
		closeErr := pc.Close()
		return nil, fmt.Errorf("set control message flags: %w", joinClose(err, closeErr))
	}

	return &LinuxPacketConn{
		pconn:     ipv6pc,
		localAddr: addr,
		ifName:    ifName,
	}, nil
}

// setRawSocketOpts configures the raw IPv6 socket via the Control
// callback, following rawsock_linux.go's Control-then-SetsockoptX pattern.
func setRawSocketOpts(c syscall.RawConn, ifName string) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		intFD := int(fd)

		if err := unix.SetsockoptInt(intFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
			return
		}

		if ifName != "" {
			if err := unix.SetsockoptString(intFD, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifName); err != nil {
				sockErr = fmt.Errorf("set SO_BINDTODEVICE(%s): %w", ifName, err)
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	return sockErr
}

// joinClose folds a cleanup error into the primary error without losing
// either.
func joinClose(primary, cleanup error) error {
	if cleanup == nil {
		return primary
	}
	return fmt.Errorf("%w (cleanup: %v)", primary, cleanup)
}
