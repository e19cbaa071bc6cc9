package instrumentation

import "github.com/mvollmer/tablebook/internal/logging"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics with guest identifiers.

// GuestRef returns a stable anonymized identifier for a customer name.
// This keeps customer PII out of metrics and general logs while still
// allowing events for the same guest to be correlated.
//
// Example:
//
//	GuestRef("Ada Lovelace")  // "guest:3f2a9c1b..."
//	GuestRef("")              // "guest:unknown"
func GuestRef(customerName string) string {
	if customerName == "" {
		return "guest:unknown"
	}
	return logging.AnonymizeCustomer(customerName)
}

// Common operation types for Calendar API metrics.
// Status constants are defined in config.go.
const (
	OperationList   = "list"
	OperationInsert = "insert"
	OperationGet    = "get"
	OperationDelete = "delete"
)
