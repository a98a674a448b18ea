package schema

import (
	"fmt"
	"strings"
)

// FieldViolation describes a single failed validation rule.
type FieldViolation struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Reason   string `json:"reason"`
}

// ValidationError reports every violated field of a tool call.
type ValidationError struct {
	Tool       string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed for tool %q:", e.Tool)
	for _, v := range e.Violations {
		fmt.Fprintf(&b, " %s: %s (expected %s);", v.Field, v.Reason, v.Expected)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// UnknownOperationError indicates the caller named a tool that does not
// exist. Distinct from ValidationError so the router can tell "bad tool"
// from "bad arguments".
type UnknownOperationError struct {
	Tool string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Tool)
}
