// Package cmd implements the command-line interface for tablebook.
//
// This package provides the following commands:
//   - serve: Start the reservation server (MCP or REST transport)
//   - auth: Manage stored backend credentials per account
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
