package git

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/oneconcern/monorel/pkg/git/status"
)

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// ExecuteWithOutput runs a command and returns its standard output
	ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput
func (e *ExecExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		operation, args := operation(cmd.Args)
		return "", status.NewGitError(operation, args, status.ErrGitOperationFailed.Wrap(err), stderr.String())
	}

	return stdout.String(), nil
}

// operation extracts the git subcommand from a command line, skipping global options.
func operation(argv []string) (string, []string) {
	if len(argv) == 0 {
		return "", nil
	}
	args := argv[1:]
	for len(args) > 0 {
		switch args[0] {
		case "-C", "-c":
			if len(args) < 2 {
				return args[0], nil
			}
			args = args[2:]
		default:
			return args[0], args[1:]
		}
	}
	return "", nil
}
