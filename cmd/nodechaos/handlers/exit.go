// Package handlers implements the business logic for CLI commands.
//
// Handlers are called by the cobra definitions in the commands package and
// are testable without the CLI framework. Collaborators are held in package
// variables so tests can replace them.
package handlers

import (
	"errors"

	"github.com/imamik/nodechaos/internal/chaos"
)

// Process exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to a process exit code. Configuration
// problems exit with ExitConfig, every other failure with ExitFailed.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, chaos.ErrConfiguration) {
		return ExitConfig
	}
	return ExitFailed
}
