package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/status"
)

// Exit codes
const (
	exitFailure = 1
	exitUsage   = 2
)

var (
	// patched in tests, to intercept exits
	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit

	// infoLogger prints informative messages on stdout
	infoLogger = log.New(os.Stdout, "", 0)
)

// exitCode tells apart invalid inputs from failed operations
func exitCode(err error) int {
	if errors.Is(err, status.ErrInvalidConfig) || errors.Is(err, status.ErrInvalidEvent) {
		return exitUsage
	}
	return exitFailure
}

func wrapFatalln(msg string, err error) {
	switch {
	case err == nil:
		logFatalln(msg)
	case exitCode(err) == exitUsage:
		wrapFatalWithCodef(exitUsage, "%s: %v", msg, err)
	default:
		logFatalf("%v", fmt.Errorf(msg+": %w", err))
	}
}

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(code)
}
