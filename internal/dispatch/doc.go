// Package dispatch routes named tool invocations to the reservation
// service. It validates payloads against the schema registry (collecting
// every violation, not just the first), executes over a closed set of
// tool names, and folds every outcome into one uniform envelope that
// the HTTP and MCP transports serialize.
package dispatch
