// SPDX-License-Identifier: LGPL-3.0-or-later

// Command enclave-demo runs a single soft enclave over a WebSocket
// listener: it accepts one HELLO, derives a Session, registers the
// evaluate and sign operations, and dispatches CIPHER records to them
// until the connection closes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enclave-demo",
	Short: "Run a soft enclave demo server",
	Long: `enclave-demo runs a minimal enclave compartment over WebSocket.

It accepts a single context-bound handshake, then dispatches CIPHER
records to an "evaluate" operation (a sandboxed goja evaluator) and a
"sign" operation (an in-memory secp256k1 signer), re-encrypting each
result before it ever leaves the process.`,
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
