package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Every case verified cleanly
	ExitCaseFailed = 1 // The run completed but some cases did not succeed
	ExitError      = 2 // Configuration or runtime error
)

// CaseFailureError indicates that the verification run completed, but one or
// more cases failed to reach a clean, validator-passing outcome.
type CaseFailureError struct {
	Message string
}

func (e *CaseFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var caseErr *CaseFailureError
		if errors.As(err, &caseErr) {
			os.Exit(ExitCaseFailed)
		}

		os.Exit(ExitError)
	}
}
