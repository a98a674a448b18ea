// Package schema defines the typed operation requests for the calendar
// tool catalog and validates raw tool-call arguments against them.
//
// The four operations form a closed set (create_event, update_event,
// delete_event, freebusy_query). Validation collects every violated field
// rather than stopping at the first, so callers see the full shape of a
// bad request in one round trip. Update arguments preserve the distinction
// between a key that is absent and a key that is explicitly null.
package schema
