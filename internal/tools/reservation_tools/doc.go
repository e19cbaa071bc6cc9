// Package reservation_tools registers the reservation MCP tools:
// create_reservation, check_availability, and cancel_reservation.
//
// Tool declarations come from the shared schema registry and execution
// goes through the shared dispatcher, so schemas and results are
// identical across the MCP and HTTP transports.
package reservation_tools
