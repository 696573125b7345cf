package netio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/gobier/internal/bierhdr"
	"github.com/dantte-lp/gobier/internal/bift"
	"github.com/dantte-lp/gobier/internal/envelope"
	"github.com/dantte-lp/gobier/internal/forwarder"
	biermetrics "github.com/dantte-lp/gobier/internal/metrics"
)

// maxPacketSize bounds the raw IPv6 and unix datagram read buffers. BIER
// headers top out at 12+256 bytes; this leaves generous room for payload.
const maxPacketSize = 9000

// StateSource supplies the current, read-only BFR state to the shell. The
// daemon entrypoint implements it with an atomic.Pointer swapped on
// SIGHUP reload; tests implement it with a fixed value.
type StateSource interface {
	Current() bift.State
}

// StaticState is a StateSource that never changes, for tests and for a
// daemon run without reload support.
type StaticState struct {
	State bift.State
}

// Current returns the fixed state.
func (s StaticState) Current() bift.State {
	return s.State
}

// Shell is the I/O event loop: it owns the raw IPv6 endpoint and the
// local control-envelope endpoint, dispatches each inbound datagram
// through the forwarding engine, and transmits or locally delivers every
// resulting duplication before reading the next datagram from the same
// endpoint. The two endpoints are read on separate goroutines, so
// datagrams from one are dispatched concurrently with, and in no fixed
// order relative to, datagrams from the other.
type Shell struct {
	Raw      PacketConn
	Control  *ControlEndpoint
	Delivery *DeliveryEndpoint // nil disables local delivery (silent drop)

	State   StateSource
	Metrics *biermetrics.Collector
	Logger  *slog.Logger
}

// Run polls both inbound endpoints until ctx is canceled. Each endpoint is
// serviced by its own goroutine; each allocates its own outbound buffer
// per dispatch call, so the two endpoints never contend over a buffer and
// no shared dispatch lock is needed. Within one dispatch call the buffer
// is single-writer, reused across every duplication from that ingress
// event before the goroutine loops back to read the next datagram.
func (s *Shell) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.pollRaw(ctx) })
	g.Go(func() error { return s.pollControl(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Shell) pollRaw(ctx context.Context) error {
	buf := make([]byte, maxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, meta, err := s.Raw.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logDrop("IoError", err)
			continue
		}

		header, err := bierhdr.FromBytes(buf[:n])
		if err != nil {
			s.logDrop("HeaderParse", err)
			continue
		}

		payload := buf[header.HeaderLength():n]
		s.Logger.Debug("received raw BIER packet", "src", meta.SrcAddr, "bift_id", header.BiftID, "bytes", n)
		s.dispatch(int(header.BiftID), header, payload)
	}
}

func (s *Shell) pollControl(ctx context.Context) error {
	buf := make([]byte, maxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.Control.ReadEnvelope(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logDrop("IoError", err)
			continue
		}

		env, err := envelope.Parse(buf[:n])
		if err != nil {
			s.logDrop("EnvelopeParse", err)
			continue
		}

		header, err := bierhdr.FromEnvelope(env)
		if err != nil {
			s.logDrop("BitstringWidth", err)
			continue
		}

		s.Logger.Debug("received control envelope", "bift_id", env.BiftID, "bytes", n)
		s.dispatch(int(env.BiftID), header, env.Payload)
	}
}

// dispatch runs the forwarding engine over header's bitstring and sends
// or locally delivers each resulting duplication, reusing one outbound
// buffer across all duplications from this ingress event.
func (s *Shell) dispatch(biftID int, header bierhdr.Header, payload []byte) {
	state := s.State.Current()
	biftIDLabel := fmt.Sprintf("%d", biftID)
	if s.Metrics != nil {
		s.Metrics.IncPacketsReceived(biftIDLabel)
	}

	dups, err := forwarder.Process(state, biftID, header.Bitstring)
	if err != nil {
		s.logDrop(errorKind(err), err)
		return
	}

	out := make([]byte, header.HeaderLength()+len(payload))
	copy(out[header.HeaderLength():], payload)

	for _, dup := range dups {
		if s.Metrics != nil {
			s.Metrics.IncDuplicationsEmitted(biftIDLabel)
		}
		if dup.NextHop == nil {
			s.deliverLocal(biftIDLabel, payload)
			continue
		}

		outHeader := header
		outHeader.Bitstring = dup.Bitstring

		if err := outHeader.ToBytes(out); err != nil {
			s.logDrop("IoError", err)
			continue
		}

		if err := s.Raw.WritePacket(out, *dup.NextHop); err != nil {
			s.logDrop("IoError", err)
			continue
		}

		if s.Metrics != nil {
			s.Metrics.IncPacketsSent(biftIDLabel, dup.NextHop.String())
		}
	}
}

func (s *Shell) deliverLocal(biftIDLabel string, payload []byte) {
	if s.Delivery == nil {
		return
	}
	if err := s.Delivery.Deliver(payload); err != nil {
		s.logDrop("IoError", err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.IncLocalDeliveries(biftIDLabel)
	}
}

func (s *Shell) logDrop(kind string, err error) {
	if s.Metrics != nil {
		s.Metrics.IncPacketsDropped(kind)
	}
	s.Logger.Warn("dropping packet", "kind", kind, "error", err)
}

// errorKind classifies a forwarder error into the error taxonomy's kind
// name, for metrics labeling and log messages.
func errorKind(err error) string {
	switch {
	case errors.Is(err, forwarder.ErrUnknownBift):
		return "UnknownBift"
	case errors.Is(err, forwarder.ErrMissingEntry):
		return "MissingEntry"
	case errors.Is(err, forwarder.ErrUnsupportedBiftType):
		return "UnsupportedBiftType"
	default:
		return "IoError"
	}
}
