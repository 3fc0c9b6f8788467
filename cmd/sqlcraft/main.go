// Command sqlcraft compiles Go expressions to SQL from the command line.
//
// Usage:
//
//	sqlcraft compile --dialect postgres --param p=Person --bind min=10 'p.Salary > min'
//	sqlcraft dialects
//	sqlcraft functions --dialect sqlserver
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	exitGeneral = 1
	exitConfig  = 2
	exitCompile = 3
)

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitError) Unwrap() error { return e.err }

func configError(msg string, err error) *exitError {
	return &exitError{code: exitConfig, msg: msg, err: err}
}

func compileError(msg string, err error) *exitError {
	return &exitError{code: exitCompile, msg: msg, err: err}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(exitGeneral)
	}
}
