package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitConfig    = 2
	ExitViolation = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ViolationError reports a check that found violations. It carries no
// cause; the command has already printed the result.
type ViolationError struct {
	Violations int
	Blocked    bool
}

func (e *ViolationError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("action blocked (%d violations)", e.Violations)
	}
	return fmt.Sprintf("action not compliant (%d violations)", e.Violations)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var vErr *ViolationError
	if errors.As(err, &vErr) {
		return ExitViolation
	}
	return ExitError
}
