// Package build runs the opaque build and deployment steps of a release.
//
// Steps are shell commands configured by the repository. They run in a
// given directory with the packages concerned exposed in the environment,
// and are bound to the context of the run.
package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"go.uber.org/zap"
)

// Environment variables exposed to commands
const (
	EnvPackages  = "MONOREL_PACKAGES"
	EnvPublished = "MONOREL_PUBLISHED"
	EnvPackage   = "MONOREL_PACKAGE"
	EnvVersion   = "MONOREL_VERSION"
	EnvTag       = "MONOREL_TAG"
)

// ErrCommandFailed is returned when a step exits with an error
var ErrCommandFailed = errors.New("command failed")

const (
	tailSize = 4096

	// waitDelay bounds the wait for the output of orphaned children once a command is killed
	waitDelay = 5 * time.Second
)

// Builder validates the packages of a snapshot, e.g. compiles and tests them
type Builder interface {
	Build(ctx context.Context, dir string, pkgs []model.PackageVersion) error
}

// Deployer runs the post-publish deployment step
type Deployer interface {
	Deploy(ctx context.Context, dir string, published []model.PackageVersion) error
}

// RunnerOption configures a runner
type RunnerOption func(*Runner)

// Output sets the writers receiving the output of commands
func Output(stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// Shell sets the shell used to interpret commands, defaults to "sh"
func Shell(shell string) RunnerOption {
	return func(r *Runner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// RunnerLogger sets the logger of a runner
func RunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.l = l
		}
	}
}

// Runner runs shell commands
type Runner struct {
	shell  string
	stdout io.Writer
	stderr io.Writer
	l      *zap.Logger
}

// NewRunner builds a command runner. By default, command output goes to the process output.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		shell:  "sh",
		stdout: os.Stdout,
		stderr: os.Stderr,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Run a shell command in a directory, with extra environment variables.
//
// A command interrupted by the deadline of the context yields status.ErrTimeout,
// any other failure yields ErrCommandFailed, with the tail of the error output.
func (r *Runner) Run(ctx context.Context, dir, command string, env ...string) error {
	tail := &tailBuffer{max: tailSize}
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = r.stdout
	cmd.Stderr = io.MultiWriter(r.stderr, tail)
	cmd.WaitDelay = waitDelay

	r.l.Info("running command", zap.String("command", command), zap.String("dir", dir))
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return status.ErrTimeout.Wrap(fmt.Errorf("%q: %w", command, ctxErr))
		}
		return ErrCommandFailed.Wrap(fmt.Errorf("%q: %w", command, ctxErr))
	}
	if out := strings.TrimSpace(tail.String()); out != "" {
		return ErrCommandFailed.Wrap(fmt.Errorf("%q: %w: %s", command, err, out))
	}
	return ErrCommandFailed.Wrap(fmt.Errorf("%q: %w", command, err))
}

// PackageList renders package versions as a space-separated list, e.g. "core@1.3.0 web@0.5.0"
func PackageList(pkgs []model.PackageVersion) string {
	parts := make([]string, 0, len(pkgs))
	for _, pv := range pkgs {
		parts = append(parts, pv.String())
	}
	return strings.Join(parts, " ")
}

// Exec builds with a shell command
type Exec struct {
	Command string
	Runner  *Runner
}

var _ Builder = &Exec{}

// Build runs the build command. Failures yield status.ErrBuild, or status.ErrTimeout.
func (e *Exec) Build(ctx context.Context, dir string, pkgs []model.PackageVersion) error {
	err := e.Runner.Run(ctx, dir, e.Command, EnvPackages+"="+PackageList(pkgs))
	if err == nil {
		return nil
	}
	if errors.Is(err, status.ErrTimeout) {
		return err
	}
	return status.ErrBuild.Wrap(err)
}

// Nop is used when no build command is configured
type Nop struct{}

// Build does nothing
func (Nop) Build(context.Context, string, []model.PackageVersion) error {
	return nil
}

// Deploy does nothing
func (Nop) Deploy(context.Context, string, []model.PackageVersion) error {
	return nil
}

// Deploy runs a deployment command
type Deploy struct {
	Command string
	Runner  *Runner
}

var _ Deployer = &Deploy{}

// Deploy runs the deployment command. Failures yield status.ErrPublish, or status.ErrTimeout.
func (d *Deploy) Deploy(ctx context.Context, dir string, published []model.PackageVersion) error {
	err := d.Runner.Run(ctx, dir, d.Command, EnvPublished+"="+PackageList(published))
	if err == nil {
		return nil
	}
	if errors.Is(err, status.ErrTimeout) {
		return err
	}
	return status.ErrPublish.Wrap(fmt.Errorf("deployment: %w", err))
}

// NewBuilder returns an Exec builder, or Nop when the command is empty
func NewBuilder(command string, runner *Runner) Builder {
	if strings.TrimSpace(command) == "" {
		return Nop{}
	}
	return &Exec{Command: command, Runner: runner}
}

// NewDeployer returns a Deploy step, or Nop when the command is empty
func NewDeployer(command string, runner *Runner) Deployer {
	if strings.TrimSpace(command) == "" {
		return Nop{}
	}
	return &Deploy{Command: command, Runner: runner}
}

// tailBuffer keeps the last bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if len(p) > t.max {
		p = p[len(p)-t.max:]
	}
	if over := t.buf.Len() + len(p) - t.max; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
