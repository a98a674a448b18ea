// Package idempotency deduplicates mutating tool calls. Every call is
// fingerprinted over its tool name, canonicalized arguments and user
// identity; a repeated fingerprint within the TTL window replays the stored
// response envelope instead of reaching the calendar service again.
//
// Lookups degrade rather than fail: a broken cache backend turns into a
// cache miss, never into a rejected request.
package idempotency
