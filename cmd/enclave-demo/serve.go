// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/soft-enclave/audit"
	"github.com/sage-x-project/soft-enclave/config"
	"github.com/sage-x-project/soft-enclave/enclave"
	"github.com/sage-x-project/soft-enclave/evaluator"
	"github.com/sage-x-project/soft-enclave/handshake"
	"github.com/sage-x-project/soft-enclave/internal/logger"
	"github.com/sage-x-project/soft-enclave/internal/metrics"
	"github.com/sage-x-project/soft-enclave/record"
	"github.com/sage-x-project/soft-enclave/signer"
	"github.com/sage-x-project/soft-enclave/transport"
)

var (
	serveAddr          string
	serveHostOrigin    string
	serveEnclaveOrigin string
	serveConfigPath    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for a host connection and run the enclave dispatch loop",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8443", "listen address")
	serveCmd.Flags().StringVar(&serveHostOrigin, "host-origin", "https://host.example", "expected host origin")
	serveCmd.Flags().StringVar(&serveEnclaveOrigin, "enclave-origin", "https://enclave.example", "this enclave's origin")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "optional config file (YAML or JSON)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.NewDefaultLogger()

	cfg := config.DefaultConfig()
	if serveConfigPath != "" {
		loaded, err := config.LoadFromFile(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	ev := evaluator.NewGojaEvaluator(evaluator.Config{
		DefaultDeadline: cfg.Evaluator.DefaultDeadline,
		MaxMemoryBytes:  cfg.Evaluator.MaxMemoryBytes,
		MaxSteps:        cfg.Evaluator.MaxSteps,
	})
	registry := signer.NewRegistry()
	registry.Register("ecdsa", signer.NewECDSABackend())

	var auditSink audit.Sink = audit.NullSink{}
	if cfg.Audit.Enabled {
		sink, err := audit.NewPostgresSink(cmd.Context(), audit.Config{
			Host:     cfg.Audit.Host,
			Port:     cfg.Audit.Port,
			User:     cfg.Audit.User,
			Password: cfg.Audit.Password,
			Database: cfg.Audit.Database,
			SSLMode:  cfg.Audit.SSLMode,
		})
		if err != nil {
			return err
		}
		defer sink.Close()
		auditSink = sink
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConnection(r.Context(), w, r, cfg, ev, registry, log, auditSink)
	})

	log.Info("enclave-demo listening", logger.String("addr", serveAddr))
	return http.ListenAndServe(serveAddr, mux)
}

func handleConnection(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	cfg config.Config,
	ev evaluator.Evaluator,
	registry *signer.Registry,
	log *logger.StructuredLogger,
	auditSink audit.Sink,
) {
	ws, err := transport.Upgrade(w, r)
	if err != nil {
		log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	defer ws.Close()

	env, err := ws.Recv(ctx)
	if err != nil || env.Kind != transport.KindHello {
		log.Warn("expected HELLO, dropping connection")
		return
	}

	var hello handshake.Hello
	if err := transport.Decode(env, &hello); err != nil {
		log.Warn("malformed HELLO payload, dropping connection")
		return
	}

	pipe := enclave.NewPipeline(hello.ID).WithLogger(log).WithAuditSink(auditSink)
	pipe.BeginHandshake()

	responder := handshake.NewResponder(cfg.Handshake, serveHostOrigin, serveEnclaveOrigin, cfg.Session).
		WithLogger(log).
		WithAuditSink(auditSink)
	ack, result, err := responder.Accept(hello)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues("malformed_hello").Inc()
		log.Warn("handshake rejected, dropping connection", logger.Error(err))
		return
	}
	metrics.HandshakesCompleted.WithLabelValues("success").Inc()

	pipe.CompleteHandshake(result.Session)
	pipe.Register(enclave.EvaluateOperation(ev, cfg.Session.MaxCode))
	pipe.Register(enclave.SignOperation(registry))

	ackEnv, err := transport.Encode(transport.KindHelloAck, ack)
	if err != nil {
		return
	}
	if err := ws.Send(ctx, ackEnv); err != nil {
		return
	}
	metrics.SessionsCreated.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	for {
		env, err := ws.Recv(ctx)
		if err != nil {
			return
		}
		if env.Kind != transport.KindCipher {
			return
		}

		var rec record.Record
		if err := transport.Decode(env, &rec); err != nil {
			return
		}

		outcome := pipe.Dispatch(ctx, rec)
		if outcome.Silent() {
			// ContextMismatch / CryptoFailure: spec.md §7 forbids any
			// observable response, since the error kind itself would be a
			// decryption oracle. Drop the connection without a reply.
			metrics.MessagesProcessed.WithLabelValues("dropped", "silent").Inc()
			return
		}

		var outEnv transport.Envelope
		if outcome.Cipher != nil {
			metrics.MessagesProcessed.WithLabelValues("cipher", "success").Inc()
			outEnv, err = transport.Encode(transport.KindCipher, outcome.Cipher)
		} else {
			metrics.MessagesProcessed.WithLabelValues("error", "failure").Inc()
			outEnv, err = transport.Encode(transport.KindError, outcome.Error)
		}
		if err != nil {
			return
		}
		if err := ws.Send(ctx, outEnv); err != nil {
			return
		}

		if pipe.State() == enclave.Closed {
			return
		}
	}
}
