package git

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/git/status"
	"github.com/oneconcern/monorel/pkg/model"
)

// Repository represents a git repository at a specific directory. All
// operations target this directory via "git -C <dir>".
type Repository struct {
	dir      string
	executor CommandExecutor
}

// Option configures a Repository
type Option func(*Repository)

// WithExecutor replaces the command executor, e.g. for testing
func WithExecutor(executor CommandExecutor) Option {
	return func(r *Repository) {
		if executor != nil {
			r.executor = executor
		}
	}
}

// NewRepository returns a Repository targeting the given directory.
func NewRepository(dir string, opts ...Option) *Repository {
	r := &Repository{
		dir:      dir,
		executor: NewExecExecutor(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// command prepares a git command targeting this repository. Prompts are
// disabled so a missing credential fails instead of blocking the run.
func (r *Repository) command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	return cmd
}

// Run executes a git command targeting this repository and returns stdout.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	out, err := r.executor.ExecuteWithOutput(ctx, r.command(ctx, args...))
	if err != nil {
		return "", classify(err)
	}
	return out, nil
}

func (r *Repository) runTrimmed(ctx context.Context, args ...string) (string, error) {
	out, err := r.Run(ctx, args...)
	return strings.TrimSpace(out), err
}

// classify attaches a more specific sentinel to git errors, based on git's stderr.
func classify(err error) error {
	var gerr *status.GitError
	if !errors.As(err, &gerr) {
		return err
	}
	out := strings.ToLower(gerr.Output)
	switch {
	case strings.Contains(out, "non-fast-forward"),
		strings.Contains(out, "fetch first"),
		strings.Contains(out, "stale info"),
		strings.Contains(out, "cannot lock ref"):
		gerr.Err = status.ErrNonFastForward.Wrap(gerr.Err)
	case strings.Contains(out, "already exists"):
		gerr.Err = status.ErrTagExists.Wrap(gerr.Err)
	case strings.Contains(out, "authentication failed"),
		strings.Contains(out, "could not read username"),
		strings.Contains(out, "access denied"),
		strings.Contains(out, "permission denied"),
		strings.Contains(out, "returned error: 401"),
		strings.Contains(out, "returned error: 403"):
		gerr.Err = status.ErrAuthRejected.Wrap(gerr.Err)
	}
	return gerr
}

// exitCode returns the exit code of a failed git command, or -1
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// RevParse resolves a revision to a full commit hash
func (r *Repository) RevParse(ctx context.Context, rev string) (string, error) {
	return r.runTrimmed(ctx, "rev-parse", "--verify", rev+"^{commit}")
}

// CurrentBranch returns the checked out branch name ("HEAD" when detached)
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	return r.runTrimmed(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// Fetch fetches refspecs and all tags from a remote
func (r *Repository) Fetch(ctx context.Context, remote string, refspecs ...string) error {
	args := append([]string{"fetch", "--tags", "--no-recurse-submodules", remote}, refspecs...)
	_, err := r.Run(ctx, args...)
	return err
}

// MergeBase returns the best common ancestor of two revisions
func (r *Repository) MergeBase(ctx context.Context, a, b string) (string, error) {
	return r.runTrimmed(ctx, "merge-base", a, b)
}

// IsAncestor tells if ancestor is reachable from descendant
func (r *Repository) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := r.Run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, err
}

// Tags lists the tags reachable from a revision
func (r *Repository) Tags(ctx context.Context, mergedInto string) ([]string, error) {
	out, err := r.Run(ctx, "tag", "--list", "--merged", mergedInto)
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// TagExists tells if a tag exists locally
func (r *Repository) TagExists(ctx context.Context, tag string) (bool, error) {
	_, err := r.Run(ctx, "rev-parse", "--quiet", "--verify", "refs/tags/"+tag)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, err
}

// TagTarget returns the commit a tag points to
func (r *Repository) TagTarget(ctx context.Context, tag string) (string, error) {
	return r.runTrimmed(ctx, "rev-list", "-n", "1", "refs/tags/"+tag)
}

// Add stages paths
func (r *Repository) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := r.Run(ctx, args...)
	return err
}

// Commit records staged changes with the given author and returns the new commit hash.
// Hooks are bypassed: automation commits carry only generated files.
func (r *Repository) Commit(ctx context.Context, message string, author model.Identity) (string, error) {
	args := append(identityArgs(author), "commit", "--no-verify", "--file", "-")
	cmd := r.command(ctx, args...)
	cmd.Stdin = strings.NewReader(message)
	if _, err := r.executor.ExecuteWithOutput(ctx, cmd); err != nil {
		return "", classify(err)
	}
	return r.RevParse(ctx, "HEAD")
}

// Tag creates an annotated tag on a revision
func (r *Repository) Tag(ctx context.Context, name, rev, message string, tagger model.Identity) error {
	args := append(identityArgs(tagger), "tag", "--annotate", "--message", message, name, rev)
	_, err := r.Run(ctx, args...)
	return err
}

// DeleteTag removes a local tag
func (r *Repository) DeleteTag(ctx context.Context, name string) error {
	_, err := r.Run(ctx, "tag", "--delete", name)
	return err
}

// Push pushes HEAD to a branch together with tags, atomically: either all refs are updated on the remote, or none.
//
// The push is a plain fast-forward push: a concurrent update of the branch makes it fail with ErrNonFastForward.
func (r *Repository) Push(ctx context.Context, remote, branch string, tags ...string) error {
	args := []string{"push", "--atomic", remote, "HEAD:refs/heads/" + branch}
	for _, tag := range tags {
		args = append(args, "refs/tags/"+tag+":refs/tags/"+tag)
	}
	_, err := r.Run(ctx, args...)
	return err
}

// RemoteURL returns the fetch URL of a remote
func (r *Repository) RemoteURL(ctx context.Context, remote string) (string, error) {
	return r.runTrimmed(ctx, "remote", "get-url", remote)
}

// SetRemoteURL sets the URL of a remote, in the repository's own configuration only
func (r *Repository) SetRemoteURL(ctx context.Context, remote, url string) error {
	_, err := r.Run(ctx, "remote", "set-url", remote, url)
	return err
}

// LsRemote lists the branch heads of a remote, which exercises the remote's authentication
func (r *Repository) LsRemote(ctx context.Context, remote string) error {
	_, err := r.Run(ctx, "ls-remote", "--heads", remote)
	return err
}

func identityArgs(id model.Identity) []string {
	if id.Name == "" && id.Email == "" {
		return nil
	}
	return []string{"-c", "user.name=" + id.Name, "-c", "user.email=" + id.Email}
}

func lines(out string) []string {
	var res []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			res = append(res, line)
		}
	}
	return res
}
