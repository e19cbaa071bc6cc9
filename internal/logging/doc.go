// Package logging provides shared slog helpers: canonical attribute
// keys, attribute constructors, and PII anonymization for customer
// names. Using these helpers keeps field names consistent across the
// dispatcher, the booking service, and the transports.
package logging
