// Package status declares error constants and types returned by the git package.
//
// NOTE: such constants are located in a separate package so engines may
// classify git failures without importing the git command layer.
package status

import (
	"fmt"
	"strings"

	"github.com/oneconcern/monorel/pkg/errors"
)

var (
	// ErrGitOperationFailed indicates a git command returned an error
	ErrGitOperationFailed = errors.New("git operation failed")

	// ErrNonFastForward indicates that the remote rejected a push because the branch moved
	ErrNonFastForward = errors.New("push rejected: non-fast-forward")

	// ErrTagExists indicates that a tag already exists, locally or on the remote
	ErrTagExists = errors.New("tag already exists")

	// ErrAuthRejected indicates that the remote refused the credentials
	ErrAuthRejected = errors.New("remote rejected credentials")

	// ErrNotHTTPS indicates a remote which does not use the https scheme
	ErrNotHTTPS = errors.New("remote is not an https remote")
)

// GitError represents an error that occurred during a git command.
// It captures the command details, underlying error, and command output.
//
// Args are kept for debugging but never rendered, since they may carry a credential.
type GitError struct {
	Operation string
	Args      []string
	Err       error
	Output    string
}

// Error implements the error interface
func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s failed", e.Operation)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *GitError) Unwrap() error {
	return e.Err
}

// NewGitError creates a new GitError with the given parameters.
func NewGitError(operation string, args []string, err error, output string) *GitError {
	return &GitError{
		Operation: operation,
		Args:      args,
		Err:       err,
		Output:    output,
	}
}
