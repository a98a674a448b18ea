// Package common provides shared helpers for MCP tool registration,
// currently the instrumentation wrapper applied to every tool handler.
package common
