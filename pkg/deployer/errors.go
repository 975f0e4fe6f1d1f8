package deployer

import (
	"errors"
	"fmt"
)

// Error kinds. A *DeploymentError matches exactly one of the first four
// through errors.Is.
var (
	ErrAuthentication     = errors.New("deployer: authentication failed")
	ErrEndpointNotFound   = errors.New("deployer: deployment endpoint not found")
	ErrTransientExhausted = errors.New("deployer: retries exhausted")
	ErrRequestFailed      = errors.New("deployer: request failed")
	ErrNotImplemented     = errors.New("deployer: not implemented")
)

// DeploymentError is a terminal deployment failure for one form.
type DeploymentError struct {
	FormID     string
	RunID      string
	Kind       error
	StatusCode int
	Attempts   int
	// Err is the last underlying cause: a transport error or a *StatusError.
	Err error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deployer: form %s: %s after %d attempt(s): %v", e.FormID, kindText(e.Kind), e.Attempts, e.Err)
}

func (e *DeploymentError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func kindText(kind error) string {
	switch {
	case errors.Is(kind, ErrAuthentication):
		return "authentication failed"
	case errors.Is(kind, ErrEndpointNotFound):
		return "deployment endpoint not found"
	case errors.Is(kind, ErrTransientExhausted):
		return "retries exhausted"
	default:
		return "request failed"
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// ConfigError reports a deployment that cannot start: nothing was sent.
type ConfigError struct {
	FormID string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.FormID != "" {
		return fmt.Sprintf("deployer: form %s: invalid %s: %s", e.FormID, e.Field, e.Reason)
	}
	return fmt.Sprintf("deployer: invalid %s: %s", e.Field, e.Reason)
}
