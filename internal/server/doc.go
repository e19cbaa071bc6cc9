// Package server provides the shared server context, session management,
// and metrics endpoint for the tablebook application.
//
// # Key Components
//
// ServerContext manages calendar backend clients with lazy initialization
// and caching. It supports multiple accounts and builds a reservation
// service per account on demand; a missing credential surfaces as a
// domain error rather than a nil client.
//
// SessionIDManager handles multi-account session tracking for HTTP
// transport. It maps Bearer tokens to backend accounts, enabling
// multiple operators to share a single server instance.
//
// MetricsServer serves the Prometheus /metrics endpoint alongside
// /healthz and /readyz probes on a dedicated listener.
package server
