// Package cmd contains the command line interface for calendar-mcp: the
// serve command that runs the MCP server over stdio or streamable HTTP, and
// the auth command for completing the Google OAuth flow.
package cmd
