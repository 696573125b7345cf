package netio

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// ControlEndpoint is the local named datagram endpoint receiving control
// envelopes from applications. It is a thin wrapper
// over *net.UnixConn bound with SOCK_DGRAM semantics.
type ControlEndpoint struct {
	conn *net.UnixConn
	path string
}

// ErrEmptySocketPath indicates a zero-value filesystem path was supplied
// for a unix datagram endpoint.
var ErrEmptySocketPath = errors.New("netio: empty socket path")

// ListenControl binds a unix datagram socket at path, removing any
// stale socket file left behind by a previous, uncleanly terminated run.
func ListenControl(path string) (*ControlEndpoint, error) {
	if path == "" {
		return nil, ErrEmptySocketPath
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale control socket %s: %w", path, err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("listen control socket %s: %w", path, err)
	}

	return &ControlEndpoint{conn: conn, path: path}, nil
}

// ReadEnvelope reads one raw control envelope datagram into buf.
func (e *ControlEndpoint) ReadEnvelope(buf []byte) (int, error) {
	n, err := e.conn.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("read control envelope from %s: %w", e.path, err)
	}
	return n, nil
}

// Close removes the socket file and releases the connection.
func (e *ControlEndpoint) Close() error {
	closeErr := e.conn.Close()
	removeErr := os.Remove(e.path)
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	if closeErr != nil || removeErr != nil {
		return fmt.Errorf("close control socket %s: %w", e.path, errors.Join(closeErr, removeErr))
	}
	return nil
}

// DeliveryEndpoint is the optional local datagram endpoint a default
// application dials to receive decapsulated local-delivery payloads.
// When unconfigured, local delivery is a silent no-op drop.
type DeliveryEndpoint struct {
	conn *net.UnixConn
	path string
}

// DialDelivery connects to the unix datagram socket at path, which the
// default application is expected to already have bound.
func DialDelivery(path string) (*DeliveryEndpoint, error) {
	if path == "" {
		return nil, ErrEmptySocketPath
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("dial delivery socket %s: %w", path, err)
	}

	return &DeliveryEndpoint{conn: conn, path: path}, nil
}

// Deliver writes a decapsulated payload to the delivery endpoint.
func (e *DeliveryEndpoint) Deliver(payload []byte) error {
	if _, err := e.conn.Write(payload); err != nil {
		return fmt.Errorf("deliver payload to %s: %w", e.path, err)
	}
	return nil
}

// Close releases the connection. The delivery endpoint does not own the
// socket file (the default application bound it), so no file is removed.
func (e *DeliveryEndpoint) Close() error {
	if err := e.conn.Close(); err != nil {
		return fmt.Errorf("close delivery socket %s: %w", e.path, err)
	}
	return nil
}
