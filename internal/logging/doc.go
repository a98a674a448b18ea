// Package logging centralizes structured logging conventions: shared
// attribute keys, helpers for common attributes, and setup of the process
// default slog logger.
//
// On the stdio transport logs must go to stderr; stdout belongs to the
// JSON-RPC stream.
package logging
