package bump

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneconcern/monorel/pkg/model"
)

type tagCall struct {
	name, rev, message string
}

type pushCall struct {
	remote, branch string
	tags           []string
}

// fakeRepo records the git operations requested by the engine
type fakeRepo struct {
	branch   string
	head     string
	base     string
	tags     []string
	history  map[string][]model.Commit // by package directory, newest first
	fetchErr error
	pushErr  error
	tagErr   error

	fetched  []string
	ranges   map[string]string
	added    []string
	commits  []string
	authors  []model.Identity
	created  []tagCall
	deleted  []string
	pushes   []pushCall
	nextHash int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		branch:  "feature/x",
		head:    "headcommit",
		base:    "basecommit",
		history: make(map[string][]model.Commit),
		ranges:  make(map[string]string),
	}
}

func (f *fakeRepo) Dir() string { return "/repo" }

func (f *fakeRepo) CurrentBranch(context.Context) (string, error) { return f.branch, nil }

func (f *fakeRepo) RevParse(_ context.Context, rev string) (string, error) {
	if rev == "HEAD" {
		return f.head, nil
	}
	return "", fmt.Errorf("unknown revision %s", rev)
}

func (f *fakeRepo) Fetch(_ context.Context, remote string, refspecs ...string) error {
	f.fetched = append(f.fetched, remote+" "+strings.Join(refspecs, " "))
	return f.fetchErr
}

func (f *fakeRepo) MergeBase(_ context.Context, a, b string) (string, error) {
	if a != f.head || b != "origin/main" {
		return "", fmt.Errorf("unexpected merge-base %s %s", a, b)
	}
	return f.base, nil
}

func (f *fakeRepo) Tags(_ context.Context, mergedInto string) ([]string, error) {
	if mergedInto != f.head {
		return nil, fmt.Errorf("unexpected tag query on %s", mergedInto)
	}
	return f.tags, nil
}

func (f *fakeRepo) TagExists(_ context.Context, tag string) (bool, error) {
	for _, t := range f.tags {
		if t == tag {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Log(_ context.Context, revRange string, paths ...string) ([]model.Commit, error) {
	if len(paths) != 1 {
		return nil, fmt.Errorf("expected a single path, got %v", paths)
	}
	f.ranges[paths[0]] = revRange
	return f.history[paths[0]], nil
}

func (f *fakeRepo) Add(_ context.Context, paths ...string) error {
	f.added = append(f.added, paths...)
	return nil
}

func (f *fakeRepo) Commit(_ context.Context, message string, author model.Identity) (string, error) {
	f.commits = append(f.commits, message)
	f.authors = append(f.authors, author)
	f.nextHash++
	return fmt.Sprintf("release%02d", f.nextHash), nil
}

func (f *fakeRepo) Tag(_ context.Context, name, rev, message string, _ model.Identity) error {
	if f.tagErr != nil {
		return f.tagErr
	}
	f.created = append(f.created, tagCall{name: name, rev: rev, message: message})
	return nil
}

func (f *fakeRepo) DeleteTag(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeRepo) Push(_ context.Context, remote, branch string, tags ...string) error {
	f.pushes = append(f.pushes, pushCall{remote: remote, branch: branch, tags: tags})
	return f.pushErr
}

type fakeBuilder struct {
	err   error
	calls [][]model.PackageVersion
	dirs  []string
}

func (b *fakeBuilder) Build(_ context.Context, dir string, pkgs []model.PackageVersion) error {
	b.calls = append(b.calls, pkgs)
	b.dirs = append(b.dirs, dir)
	return b.err
}
