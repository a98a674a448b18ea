// Package calendar_tools registers the Google Calendar mutation tools with
// the MCP server. Each tool carries a hand-written JSON schema and delegates
// to the dispatch pipeline, which validates, deduplicates, and executes the
// mutation; handlers here only translate between MCP requests and the
// pipeline's response envelope.
package calendar_tools
