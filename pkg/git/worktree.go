package git

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// Worktree is a detached checkout of an exact revision, isolated from the main working tree.
type Worktree struct {
	// Dir is the location of the checkout on the OS
	Dir string

	// Fs exposes the checkout, rooted at Dir
	Fs afero.Fs

	// Commit checked out
	Commit string

	remove func(context.Context) error
}

// NewWorktree builds a worktree handle over an arbitrary filesystem, e.g. for testing
func NewWorktree(dir, commit string, fs afero.Fs, remove func(context.Context) error) *Worktree {
	return &Worktree{Dir: dir, Commit: commit, Fs: fs, remove: remove}
}

// Close removes the worktree
func (w *Worktree) Close(ctx context.Context) error {
	if w == nil || w.remove == nil {
		return nil
	}
	return w.remove(ctx)
}

// Checkout creates a detached worktree at a revision in a fresh temporary directory
func (r *Repository) Checkout(ctx context.Context, rev string) (*Worktree, error) {
	commit, err := r.RevParse(ctx, rev)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "monorel-worktree-")
	if err != nil {
		return nil, err
	}
	if _, err = r.Run(ctx, "worktree", "add", "--detach", "--force", dir, commit); err != nil {
		return nil, multierr.Append(err, os.RemoveAll(dir))
	}
	remove := func(ctx context.Context) error {
		_, err := r.Run(ctx, "worktree", "remove", "--force", dir)
		return multierr.Append(err, os.RemoveAll(dir))
	}
	return NewWorktree(dir, commit, afero.NewBasePathFs(afero.NewOsFs(), dir), remove), nil
}
