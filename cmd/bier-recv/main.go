// Command bier-recv is a default local application: it binds a named
// datagram endpoint and logs the decapsulated payloads bierd delivers to
// it (reference examples/receiver.rs).
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
)

var (
	unixPath string
	nToRecv  int
)

var rootCmd = &cobra.Command{
	Use:   "bier-recv",
	Short: "Receive decapsulated payloads delivered by a bierd daemon",
	RunE:  runRecv,
}

func init() {
	rootCmd.Flags().StringVarP(&unixPath, "unix-path", "u", "", "path to bind the local delivery socket (required)")
	rootCmd.Flags().IntVarP(&nToRecv, "count", "n", 1, "number of payloads to receive before exiting")
	if err := rootCmd.MarkFlagRequired("unix-path"); err != nil {
		panic(err)
	}
}

func runRecv(_ *cobra.Command, _ []string) error {
	if err := os.Remove(unixPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", unixPath, err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: unixPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("bind %s: %w", unixPath, err)
	}
	defer conn.Close()
	defer os.Remove(unixPath)

	buf := make([]byte, 9000)
	for i := 0; i < nToRecv; i++ {
		n, err := conn.Read(buf)
		if err != nil {
			return fmt.Errorf("receive payload %d: %w", i, err)
		}
		fmt.Fprintf(os.Stdout, "received %d bytes\n", n)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
