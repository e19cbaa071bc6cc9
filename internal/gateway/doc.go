// Package gateway serves the REST transport for the reservation tools.
//
// Routes:
//
//	GET  /mcp             server info and protocol hints
//	GET  /mcp/tools       tool catalogue from the schema registry
//	POST /mcp/run/{tool}  run one tool invocation
//
// Invocations carry the caller's backend credential as a Bearer token;
// the gateway builds a request-scoped calendar client from it, so no
// credential outlives its request. Validation, routing, and the result
// envelope are shared with the MCP transport through the dispatcher.
package gateway
