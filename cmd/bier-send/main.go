// Command bier-send submits control envelopes to a running bierd over
// its local datagram endpoint (reference examples/sender.rs).
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/gobier/internal/bitstring"
	"github.com/dantte-lp/gobier/internal/envelope"
)

var (
	bierPath  string
	biftID    uint32
	proto     uint16
	bsText    string
	nToSend   int
	payloadSz int
)

var rootCmd = &cobra.Command{
	Use:   "bier-send",
	Short: "Send control envelopes to a bierd daemon",
	RunE:  runSend,
}

func init() {
	rootCmd.Flags().StringVarP(&bierPath, "bier", "b", "", "path to the bierd control socket (required)")
	rootCmd.Flags().Uint32Var(&biftID, "bift-id", 1, "destination BIFT-ID")
	rootCmd.Flags().Uint16Var(&proto, "proto", 0, "upper-layer protocol number")
	rootCmd.Flags().StringVarP(&bsText, "bitstring", "s", "1", "destination bitstring, big-endian binary literal")
	rootCmd.Flags().IntVarP(&nToSend, "count", "n", 1, "number of envelopes to send")
	rootCmd.Flags().IntVar(&payloadSz, "payload-size", 1000, "zero-filled payload size in bytes")
	if err := rootCmd.MarkFlagRequired("bier"); err != nil {
		panic(err)
	}
}

func runSend(_ *cobra.Command, _ []string) error {
	bs, err := bitstring.FromText(bsText)
	if err != nil {
		return fmt.Errorf("parse bitstring: %w", err)
	}

	env := envelope.Envelope{
		BiftID:    biftID,
		Proto:     proto,
		Bitstring: bs.ToBytes(),
		Payload:   make([]byte, payloadSz),
	}
	buf := env.Marshal()

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: bierPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("dial %s: %w", bierPath, err)
	}
	defer conn.Close()

	for i := 0; i < nToSend; i++ {
		if _, err := conn.Write(buf); err != nil {
			return fmt.Errorf("send envelope %d: %w", i, err)
		}
	}
	fmt.Fprintf(os.Stdout, "sent %d envelope(s) to %s\n", nToSend, bierPath)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
