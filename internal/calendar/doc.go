// Package calendar wraps the Google Calendar v3 service behind a small
// interface covering exactly the calls the mutation pipeline needs. The
// interface keeps the adapter testable without network access; the real
// client authenticates through the google package's token providers.
package calendar
