// Package adapter executes validated calendar mutations against the Google
// Calendar service. Every operation runs inside the worker pool behind the
// retry policy, writes audit records around the mutation, and always
// returns a response envelope; transport-level errors are reserved for
// protocol failures.
package adapter
