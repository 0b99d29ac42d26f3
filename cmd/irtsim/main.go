package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Run completed
	ExitFitFailed = 1 // Simulation ran, but an estimator failed on the drawn data
	ExitError     = 2 // Configuration or runtime error
)

// FitFailureError indicates that the simulation itself ran fine, but a
// fitting backend failed on the generated data (degenerate matrix,
// non-convergence, singular fit).
type FitFailureError struct {
	Message string
}

func (e *FitFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var fitErr *FitFailureError
		if errors.As(err, &fitErr) {
			os.Exit(ExitFitFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
