package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Issue rules.
const (
	RuleRequired    = "required"
	RuleInvalidType = "invalid_type"
	RuleInvalidEnum = "invalid_enum"
	RulePattern     = "pattern"
	RuleDuplicate   = "duplicate"
	RuleInvariant   = "invariant"
	RuleUnknownKey  = "unknown_key"
	RuleReference   = "reference"
	RuleRange       = "range"
)

// Issue is a single violated constraint. Path uses dotted/indexed notation,
// for example forms[0].fields[2].references.form.
type Issue struct {
	Path    string `json:"path" yaml:"path"`
	Rule    string `json:"rule" yaml:"rule"`
	Message string `json:"message" yaml:"message"`
}

// String renders the issue as "<path>: <message>".
func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Issues is an ordered list of violations.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := min(len(iss), maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Rule, iss[i].Path)
	}
	if len(iss) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(iss))
	}
	return b.String()
}

// Strings formats every issue as "<path>: <message>".
func (iss Issues) Strings() []string {
	out := make([]string, len(iss))
	for i, issue := range iss {
		out[i] = issue.String()
	}
	return out
}

// NotFoundError reports a missing input.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schema: input not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ParseError reports malformed input. Line is 1-based and zero when unknown.
type ParseError struct {
	Input string
	Line  int
	Cause error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("schema: parse ")
	b.WriteString(e.Input)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Cause }

// NewParseError builds a ParseError from a formatted cause.
func NewParseError(input string, line int, format string, args ...any) *ParseError {
	return &ParseError{Input: input, Line: line, Cause: fmt.Errorf(format, args...)}
}

// SchemaValidationError carries every violated constraint of one input.
type SchemaValidationError struct {
	Input  string
	Issues Issues
}

func (e *SchemaValidationError) Error() string {
	prefix := "schema: validation failed"
	if e.Input != "" {
		prefix += " for " + e.Input
	}
	return fmt.Sprintf("%s (%d issues): %s", prefix, len(e.Issues), e.Issues.Error())
}

func (e *SchemaValidationError) Unwrap() error { return e.Issues }

// ArgumentError reports a missing or invalid caller-supplied argument.
type ArgumentError struct {
	Input  string
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("schema: argument %s: %s", e.Arg, e.Reason)
	}
	return fmt.Sprintf("schema: %s: argument %s: %s", e.Input, e.Arg, e.Reason)
}

// AsIssues extracts validation issues from err.
func AsIssues(err error) (Issues, bool) {
	var verr *SchemaValidationError
	if errors.As(err, &verr) {
		return verr.Issues, true
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}
