// Package common provides shared utilities for MCP tool implementations.
// It contains account resolution and instrumentation wrappers used across
// the tool packages to keep behavior consistent.
package common
