package calcbench

import (
	"fmt"
	"time"
)

// A SetupError is returned when a service's workspace is not usable, e.g. when it has no Dockerfile.
type SetupError struct {
	Service string
	Reason  string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of %s failed: %s", e.Service, e.Reason)
}

// A ProcessError is returned when a subprocess exited with a nonzero exit code.
type ProcessError struct {
	Op       string   // The operation that was run, e.g. "docker build"
	ExitCode int      // The exit code of the process
	Tail     []string // The last lines of output of the process, if they were collected
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Op, e.ExitCode)
}

// A ConnectivityError is returned when a service never answered its healthcheck.
type ConnectivityError struct {
	URL      string
	Attempts int
	Err      error // The error of the last attempt
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("no healthy response from %s after %d attempts - %v", e.URL, e.Attempts, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// An ApplicationError is a structured 4xx rejection of an equation by the service under test.
type ApplicationError struct {
	StatusCode int
	Message    string // The body's error field, empty if missing
	Equation   string // The body's equation field

	HasEquation bool // Whether the body had an equation field at all
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("service rejected equation %q with status %d: %s", e.Equation, e.StatusCode, e.Message)
}

// A TimeoutError signals that a test request did not settle within its deadline.
type TimeoutError struct {
	Equation string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request for equation of length %d timed out after %s", len(e.Equation), e.Deadline)
}

// A StageError wraps the error which made a service's pipeline fail in the given stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
