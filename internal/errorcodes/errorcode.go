// Package errorcodes defines sandbox errors using a structured type.
// SandboxError holds the short code and human-readable description.
package errorcodes

import "errors"

// Predefined sandbox error instances.
var (
	ErrOutOfMemory      = SandboxError{"E1", "Plugin arena exhausted"}
	ErrInvalidPointer   = SandboxError{"E2", "Pointer is not a live block of the plugin arena"}
	ErrNoActivePlugin   = SandboxError{"E3", "Called outside plugin scope: no current plugin"}
	ErrNoImplementation = SandboxError{"E4", "No implementation bound to protocol operation"}
	ErrTooManyArgs      = SandboxError{"E5", "Argument count exceeds invocation arity limit"}
	ErrBindingConflict  = SandboxError{"E6", "Protocol operation already replaced by another plugin"}
	ErrPluginLoad       = SandboxError{"E7", "Plugin could not be loaded"}
	ErrMalformedRequest = SandboxError{"E8", "Malformed invocation request"}
	ErrNoActiveCall     = SandboxError{"E9", "Call frame accessed outside protocol operation"}
	ErrNestingLimit     = SandboxError{"EA", "Protocol operation nesting too deep"}
	ErrPluginFault      = SandboxError{"EB", "Plugin implementation failed"}
)

// SandboxError represents a sandbox error with its code and description.
type SandboxError struct {
	Code        string // short error code
	Description string // human-readable description
}

// Error implements the Go error interface: "<Code>: <Description>".
func (e SandboxError) Error() string {
	return e.Code + ": " + e.Description
}

// CodeOnly returns only the error code (e.g., "E3"), for embedding in harness responses.
func (e SandboxError) CodeOnly() string {
	return e.Code
}

// ContractError reports a programming error in the code driving a connection,
// as opposed to a condition a plugin can trigger at runtime. The host decides
// whether to abort or isolate the offending connection.
type ContractError struct {
	Op  string
	Err error
}

func (e *ContractError) Error() string {
	return "contract violation in " + e.Op + ": " + e.Err.Error()
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// Violation wraps err as a contract violation raised by op.
func Violation(op string, err error) error {
	return &ContractError{Op: op, Err: err}
}

// IsContractViolation reports whether err carries a ContractError.
func IsContractViolation(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// Code extracts the sandbox error code from err, or "" when err carries none.
func Code(err error) string {
	var se SandboxError
	if errors.As(err, &se) {
		return se.CodeOnly()
	}

	return ""
}
