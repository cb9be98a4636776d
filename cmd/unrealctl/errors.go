package main

import "fmt"

// Exit codes for CLI commands.
const (
	exitSuccess       = 0
	exitError         = 1
	exitUnreachable   = 2
	exitInvalidParams = 3
)

// ExitError ends the process with a specific code. An empty Message means
// the failure was already reported.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func errCommandFailed() *ExitError {
	return &ExitError{Code: exitError}
}

func errUnreachable(addr string, cause error) *ExitError {
	return &ExitError{
		Code:    exitUnreachable,
		Message: fmt.Sprintf("Bridge at %s is not reachable: %v", addr, cause),
	}
}

func errInvalidParams(cause error) *ExitError {
	return &ExitError{
		Code:    exitInvalidParams,
		Message: fmt.Sprintf("Invalid params: %v", cause),
	}
}
