// Command surveyctl evaluates expressions and checks survey definitions
// without a running server.
package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	exitSuccess = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errInvalidSurvey):
		return exitInvalid
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
}
