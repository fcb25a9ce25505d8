// SPDX-License-Identifier: LGPL-3.0-or-later

// Command host-demo drives one round trip against an enclave-demo
// server: handshake, an "evaluate" call, and, when a private key is given,
// a "sign" call, each request and response crossing the wire only as a
// CIPHER record.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "host-demo",
	Short: "Drive a soft enclave handshake and request round trip",
	Long: `host-demo plays the untrusted host side of the protocol: it opens a
WebSocket connection to an enclave-demo server, completes the
context-bound handshake, and sends one or more requests, printing the
decrypted result of each.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
