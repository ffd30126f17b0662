package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/git/status"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = model.Identity{Name: "monorel test", Email: "test@example.com"}

func gitCmd(t testing.TB, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func writeFile(t testing.TB, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

// setupRemote creates a bare remote and a clone with one commit on main pushed to it
func setupRemote(t *testing.T) (string, *Repository, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}
	tmp := t.TempDir()
	remote := filepath.Join(tmp, "remote.git")
	work := filepath.Join(tmp, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))

	gitCmd(t, tmp, "init", "--bare", remote)
	gitCmd(t, work, "init")
	gitCmd(t, work, "symbolic-ref", "HEAD", "refs/heads/main")
	gitCmd(t, work, "remote", "add", "origin", remote)

	repo := NewRepository(work)
	ctx := context.Background()
	writeFile(t, work, "packages/core/package.yaml", "name: core\nversion: 1.0.0\n")
	require.NoError(t, repo.Add(ctx, "."))
	first, err := repo.Commit(ctx, "feat(core): initial", testIdentity)
	require.NoError(t, err)
	require.NoError(t, repo.Push(ctx, "origin", "main"))

	return remote, repo, first
}

func TestRepositoryWorkflow(t *testing.T) {
	remote, repo, first := setupRemote(t)
	ctx := context.Background()

	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	require.NoError(t, repo.Tag(ctx, "core@1.0.0", "HEAD", "core@1.0.0", testIdentity))
	exists, err := repo.TagExists(ctx, "core@1.0.0")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.TagExists(ctx, "core@9.9.9")
	require.NoError(t, err)
	assert.False(t, exists)

	writeFile(t, repo.Dir(), "packages/core/cache.go", "package core\n")
	writeFile(t, repo.Dir(), "README.md", "# mono\n")
	require.NoError(t, repo.Add(ctx, "."))
	second, err := repo.Commit(ctx, "fix(core): cache\n\nbody", testIdentity)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	commits, err := repo.Log(ctx, "core@1.0.0..HEAD", "packages/core")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, second, commits[0].ID)
	assert.Equal(t, "fix(core): cache\n\nbody", commits[0].Message)
	assert.Equal(t, []string{"packages/core/cache.go"}, commits[0].Files)
	assert.Equal(t, []string{first}, commits[0].Parents)

	tags, err := repo.Tags(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, []string{"core@1.0.0"}, tags)

	target, err := repo.TagTarget(ctx, "core@1.0.0")
	require.NoError(t, err)
	assert.Equal(t, first, target)

	ok, err := repo.IsAncestor(ctx, first, second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsAncestor(ctx, second, first)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Push(ctx, "origin", "main", "core@1.0.0"))
	out, err := exec.Command("git", "-C", remote, "tag", "--list").Output()
	require.NoError(t, err)
	assert.Equal(t, "core@1.0.0\n", string(out))

	url, err := repo.RemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, remote, url)
	require.NoError(t, repo.LsRemote(ctx, "origin"))

	wt, err := repo.Checkout(ctx, "core@1.0.0")
	require.NoError(t, err)
	assert.Equal(t, first, wt.Commit)
	content, err := afero.ReadFile(wt.Fs, "packages/core/package.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: core\nversion: 1.0.0\n", string(content))
	_, err = wt.Fs.Stat("packages/core/cache.go")
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, wt.Close(ctx))
	_, err = os.Stat(wt.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestPushRaceIsNonFastForward(t *testing.T) {
	remote, repo, _ := setupRemote(t)
	ctx := context.Background()

	other := filepath.Join(t.TempDir(), "other")
	gitCmd(t, filepath.Dir(other), "clone", "--branch", "main", remote, other)
	otherRepo := NewRepository(other)
	writeFile(t, other, "packages/core/other.go", "package core\n")
	require.NoError(t, otherRepo.Add(ctx, "."))
	_, err := otherRepo.Commit(ctx, "feat(core): from the other run", testIdentity)
	require.NoError(t, err)
	require.NoError(t, otherRepo.Push(ctx, "origin", "main"))

	writeFile(t, repo.Dir(), "packages/core/mine.go", "package core\n")
	require.NoError(t, repo.Add(ctx, "."))
	_, err = repo.Commit(ctx, "feat(core): from this run", testIdentity)
	require.NoError(t, err)
	require.NoError(t, repo.Tag(ctx, "core@1.1.0", "HEAD", "core@1.1.0", testIdentity))

	err = repo.Push(ctx, "origin", "main", "core@1.1.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNonFastForward), "got %v", err)

	// atomic: the tag did not reach the remote either
	out, err := exec.Command("git", "-C", remote, "tag", "--list").Output()
	require.NoError(t, err)
	assert.Empty(t, string(out))
}
