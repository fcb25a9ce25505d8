// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics exposes Prometheus collectors for the handshake,
// session, record, and crypto layers. It never observes plaintext
// bodies or key material — only counts, durations, and sizes, mirroring
// the wire protocol's own "no oracle" rule for what may be observed
// from outside a session's owning compartment.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "soft_enclave"

// Registry is the collector registry every metric in this package is
// registered against. Callers serve it via Handler/StartServer, or embed
// it into a larger process registry.
var Registry = prometheus.NewRegistry()
