// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/soft-enclave/enclave"
	"github.com/sage-x-project/soft-enclave/handshake"
	"github.com/sage-x-project/soft-enclave/internal/logger"
	"github.com/sage-x-project/soft-enclave/record"
	"github.com/sage-x-project/soft-enclave/session"
	"github.com/sage-x-project/soft-enclave/transport"
)

var (
	runURL           string
	runHostOrigin    string
	runEnclaveOrigin string
	runCodeHash      string
	runSource        string
	runSignHex       string
	runSignChain     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect, handshake, and send an evaluate (and optional sign) request",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runURL, "url", "ws://127.0.0.1:8443/ws", "enclave-demo websocket URL")
	runCmd.Flags().StringVar(&runHostOrigin, "host-origin", "https://host.example", "this host's origin")
	runCmd.Flags().StringVar(&runEnclaveOrigin, "enclave-origin", "https://enclave.example", "expected enclave origin")
	runCmd.Flags().StringVar(&runCodeHash, "code-hash", "demo-bundle-v1", "enclave bundle hash to bind into the handshake")
	runCmd.Flags().StringVar(&runSource, "source", "1 + 1", "JavaScript source to evaluate inside the enclave")
	runCmd.Flags().StringVar(&runSignHex, "sign-priv-key-hex", "", "hex-encoded private key; if set, also sends a sign request")
	runCmd.Flags().StringVar(&runSignChain, "sign-chain", "ecdsa", "signer backend to resolve for the sign request")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logger.NewDefaultLogger()
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	ws, err := transport.Dial(ctx, runURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	initiator, hello, err := handshake.NewInitiator(handshake.DefaultConfig(), runHostOrigin, runEnclaveOrigin, runCodeHash)
	if err != nil {
		return fmt.Errorf("build hello: %w", err)
	}
	initiator.WithLogger(log)

	helloEnv, err := transport.Encode(transport.KindHello, hello)
	if err != nil {
		return err
	}
	if err := ws.Send(ctx, helloEnv); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	ackEnv, err := ws.Recv(ctx)
	if err != nil {
		return fmt.Errorf("recv hello_ack: %w", err)
	}
	if ackEnv.Kind != transport.KindHelloAck {
		return fmt.Errorf("expected HELLO_ACK, got %s", ackEnv.Kind)
	}
	var ack handshake.HelloAck
	if err := transport.Decode(ackEnv, &ack); err != nil {
		return fmt.Errorf("decode hello_ack: %w", err)
	}

	result, err := initiator.Complete(ack)
	if err != nil {
		return fmt.Errorf("complete handshake: %w", err)
	}
	sess := result.Session
	log.Info("handshake complete", logger.String("session_id", sess.ID))

	evalReq := enclave.EvaluateRequest{Source: runSource}
	var evalResult enclave.EvaluateResult
	if err := roundTrip(ctx, ws, sess, enclave.AADEvaluateIn, evalReq, enclave.AADEvaluateOut, &evalResult); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	fmt.Printf("evaluate result: %v\n", evalResult.Value)

	if runSignHex != "" {
		privKey, err := hex.DecodeString(runSignHex)
		if err != nil {
			return fmt.Errorf("decode sign-priv-key-hex: %w", err)
		}
		signReq := enclave.SignRequest{
			TxBytes: []byte("demo transaction body"),
			PrivKey: privKey,
			Chain:   runSignChain,
		}
		var signResult enclave.SignResult
		if err := roundTrip(ctx, ws, sess, enclave.AADSignIn, signReq, enclave.AADSignOut, &signResult); err != nil {
			return fmt.Errorf("sign: %w", err)
		}
		fmt.Printf("signature: %s\n", hex.EncodeToString(signResult.Signature))
	}

	return nil
}

// roundTrip seals req under aadIn, sends it, and opens the enclave's
// response (expected under aadOut) into out. An ERROR envelope surfaces
// as a plain Go error naming the enclave's error kind; nothing about the
// failure's cause is ever inferred beyond that.
func roundTrip(ctx context.Context, t transport.Transport, sess *session.Session, aadIn string, req any, aadOut string, out any) error {
	rec, err := record.Seal(sess, req, aadIn)
	if err != nil {
		return fmt.Errorf("seal request: %w", err)
	}
	env, err := transport.Encode(transport.KindCipher, rec)
	if err != nil {
		return err
	}
	if err := t.Send(ctx, env); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	respEnv, err := t.Recv(ctx)
	if err != nil {
		return fmt.Errorf("recv response: %w", err)
	}
	switch respEnv.Kind {
	case transport.KindCipher:
		var respRec record.Record
		if err := transport.Decode(respEnv, &respRec); err != nil {
			return fmt.Errorf("decode response record: %w", err)
		}
		if _, err := record.Open(sess, respRec, aadOut, out); err != nil {
			return fmt.Errorf("open response: %w", err)
		}
		return nil
	case transport.KindError:
		var errRec enclave.ErrorRecord
		if err := transport.Decode(respEnv, &errRec); err != nil {
			return fmt.Errorf("decode error record: %w", err)
		}
		return fmt.Errorf("enclave returned error: %s", errRec.Kind)
	default:
		return fmt.Errorf("unexpected envelope kind: %s", respEnv.Kind)
	}
}
