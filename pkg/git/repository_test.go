package git

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"testing"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/git/status"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failWith(stderr string) func(context.Context, *exec.Cmd) (string, error) {
	return func(_ context.Context, cmd *exec.Cmd) (string, error) {
		op, args := operation(cmd.Args)
		return "", status.NewGitError(op, args, status.ErrGitOperationFailed.Wrap(fmt.Errorf("exit status 1")), stderr)
	}
}

func TestOperation(t *testing.T) {
	op, args := operation([]string{"git", "-C", "/repo", "-c", "user.name=bot", "commit", "-m", "x"})
	assert.Equal(t, "commit", op)
	assert.Equal(t, []string{"-m", "x"}, args)

	op, _ = operation([]string{"git"})
	assert.Empty(t, op)
}

func TestCommandTargetsRepository(t *testing.T) {
	mock := &MockCommandExecutor{Output: "feat/x\n"}
	repo := NewRepository("/work/repo", WithExecutor(mock))

	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feat/x", branch)

	require.Len(t, mock.Commands, 1)
	cmd := mock.Commands[0]
	assert.Equal(t, []string{"git", "-C", "/work/repo", "rev-parse", "--abbrev-ref", "HEAD"}, cmd.Args)
	assert.Contains(t, cmd.Env, "GIT_TERMINAL_PROMPT=0")
}

func TestPushArguments(t *testing.T) {
	mock := &MockCommandExecutor{}
	repo := NewRepository("/repo", WithExecutor(mock))

	require.NoError(t, repo.Push(context.Background(), "origin", "feat/x", "core@1.3.0", "util@0.2.1"))
	assert.Equal(t, []string{
		"push", "--atomic", "origin", "HEAD:refs/heads/feat/x",
		"refs/tags/core@1.3.0:refs/tags/core@1.3.0",
		"refs/tags/util@0.2.1:refs/tags/util@0.2.1",
	}, mock.LastArgs())
}

func TestPushClassification(t *testing.T) {
	for _, tc := range []struct {
		stderr   string
		expected error
	}{
		{" ! [rejected]        HEAD -> feat/x (fetch first)\nerror: failed to push some refs", status.ErrNonFastForward},
		{" ! [rejected]        HEAD -> feat/x (non-fast-forward)", status.ErrNonFastForward},
		{" ! [rejected]        core@1.3.0 -> core@1.3.0 (already exists)", status.ErrTagExists},
		{"fatal: Authentication failed for 'https://gitlab.example.com/acme/mono.git/'", status.ErrAuthRejected},
		{"remote: HTTP Basic: Access denied", status.ErrAuthRejected},
	} {
		repo := NewRepository("/repo", WithExecutor(&MockCommandExecutor{ExecuteWithOutputFn: failWith(tc.stderr)}))
		err := repo.Push(context.Background(), "origin", "feat/x", "core@1.3.0")
		require.Error(t, err)
		assert.True(t, errors.Is(err, tc.expected), "expected %v for %q, got %v", tc.expected, tc.stderr, err)
		assert.True(t, errors.Is(err, status.ErrGitOperationFailed))

		var gerr *status.GitError
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, "push", gerr.Operation)
	}
}

func TestCommitFeedsMessageOnStdin(t *testing.T) {
	var message string
	mock := &MockCommandExecutor{
		ExecuteWithOutputFn: func(_ context.Context, cmd *exec.Cmd) (string, error) {
			if cmd.Stdin != nil {
				b, err := io.ReadAll(cmd.Stdin)
				require.NoError(t, err)
				message = string(b)
				return "", nil
			}
			return "0123456789abcdef\n", nil
		},
	}
	repo := NewRepository("/repo", WithExecutor(mock))

	id, err := repo.Commit(context.Background(), "chore: publish core@1.3.0\n\nRelease-Bot: monorel", model.Identity{Name: "monorel", Email: "bot@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", id)
	assert.Equal(t, "chore: publish core@1.3.0\n\nRelease-Bot: monorel", message)

	require.Len(t, mock.Commands, 2)
	assert.Equal(t, []string{"-c", "user.name=monorel", "-c", "user.email=bot@example.com", "commit", "--no-verify", "--file", "-"}, mock.Commands[0].Args[3:])
	assert.Equal(t, []string{"rev-parse", "--verify", "HEAD^{commit}"}, mock.Commands[1].Args[3:])
}

func TestParseLog(t *testing.T) {
	out := "\x1eaaaaaaa1\x1fbbbbbbb2\x1fJane\x1fjane@example.com\x1ffeat(core): add cache\n\nlonger body\n\x1f\n\npackages/core/cache.go\npackages/core/cache_test.go\n" +
		"\x1ebbbbbbb2\x1fccccccc3 ddddddd4\x1fMerge Bot\x1fbot@example.com\x1fMerge branch 'main' into feat/x\n\x1f\n"

	commits := parseLog(out)
	require.Len(t, commits, 2)

	assert.Equal(t, "aaaaaaa1", commits[0].ID)
	assert.Equal(t, []string{"bbbbbbb2"}, commits[0].Parents)
	assert.Equal(t, model.Identity{Name: "Jane", Email: "jane@example.com"}, commits[0].Author)
	assert.Equal(t, "feat(core): add cache\n\nlonger body", commits[0].Message)
	assert.Equal(t, []string{"packages/core/cache.go", "packages/core/cache_test.go"}, commits[0].Files)

	assert.Equal(t, []string{"ccccccc3", "ddddddd4"}, commits[1].Parents)
	assert.Empty(t, commits[1].Files)

	assert.Empty(t, parseLog(""))
}

func TestIsAncestorExitCodes(t *testing.T) {
	exitOne := func(_ context.Context, cmd *exec.Cmd) (string, error) {
		// "false" exits with status 1, as "git merge-base --is-ancestor" does for a non-ancestor
		err := exec.Command("false").Run()
		op, args := operation(cmd.Args)
		return "", status.NewGitError(op, args, status.ErrGitOperationFailed.Wrap(err), "")
	}
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false(1) not available")
	}
	repo := NewRepository("/repo", WithExecutor(&MockCommandExecutor{ExecuteWithOutputFn: exitOne}))
	ok, err := repo.IsAncestor(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	repo = NewRepository("/repo", WithExecutor(&MockCommandExecutor{}))
	ok, err = repo.IsAncestor(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}
