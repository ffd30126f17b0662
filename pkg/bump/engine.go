// Package bump implements the version bump engine.
//
// Given a feature branch, the engine infers the version increment of every
// package from the commits made since its last release, writes the new
// versions and changelog sections, validates them with the build step, and
// pushes a single release commit along with one release tag per bumped
// package, atomically, to the same feature branch.
//
// The engine never writes to the protected branch: release commits reach
// it only through a human merge.
package bump

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/changelog"
	"github.com/oneconcern/monorel/pkg/errors"
	gitstatus "github.com/oneconcern/monorel/pkg/git/status"
	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/oneconcern/monorel/pkg/workspace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultRemote          = "origin"
	DefaultProtectedBranch = "main"
)

// DefaultAuthor of automation commits
var DefaultAuthor = model.Identity{Name: "monorel", Email: "monorel@localhost"}

// Repo is the git repository the engine works on
type Repo interface {
	Dir() string
	CurrentBranch(ctx context.Context) (string, error)
	RevParse(ctx context.Context, rev string) (string, error)
	Fetch(ctx context.Context, remote string, refspecs ...string) error
	MergeBase(ctx context.Context, a, b string) (string, error)
	Tags(ctx context.Context, mergedInto string) ([]string, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	Log(ctx context.Context, revRange string, paths ...string) ([]model.Commit, error)
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string, author model.Identity) (string, error)
	Tag(ctx context.Context, name, rev, message string, tagger model.Identity) error
	DeleteTag(ctx context.Context, name string) error
	Push(ctx context.Context, remote, branch string, tags ...string) error
}

// Engine bumps versions on feature branches
type Engine struct {
	repo       Repo
	ws         *workspace.Workspace
	classifier changelog.Classifier
	builder    build.Builder
	guard      guard.Guard
	tags       *model.TagFormat
	remote     string
	protected  string
	author     model.Identity
	dryRun     bool
	now        func() time.Time
	l          *zap.Logger
}

// New bump engine over a repository and its workspace
func New(repo Repo, ws *workspace.Workspace, opts ...Option) *Engine {
	e := &Engine{
		repo:       repo,
		ws:         ws,
		classifier: changelog.Conventional{},
		builder:    build.Nop{},
		guard:      guard.New(guard.DefaultMarker, guard.DefaultTrailer),
		tags:       model.MustTagFormat(model.DefaultTagFormat),
		remote:     DefaultRemote,
		protected:  DefaultProtectedBranch,
		author:     DefaultAuthor,
		now:        time.Now,
		l:          zap.NewNop(),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// plan is the bump of a single package
type plan struct {
	pkg     *model.Package
	since   string
	next    *semver.Version
	impact  model.Impact
	entries []model.ChangelogEntry
	tag     string
}

// Bump releases the packages changed on branch since their last release.
//
// When sinceTag is not empty, it is the starting point of the history for every package.
// Otherwise, each package starts from its highest release tag reachable from the merge-base
// with the protected branch, or from the merge-base itself.
//
// It returns status.ErrNothingToRelease when no commit has any impact, leaving the workspace untouched.
func (e *Engine) Bump(ctx context.Context, branch, sinceTag string) (*model.BumpResult, error) {
	if branch == "" {
		current, err := e.repo.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		branch = current
	}
	if branch == "HEAD" {
		return nil, fmt.Errorf("cannot bump a detached HEAD: a branch is required")
	}
	if branch == e.protected {
		return nil, status.ErrProtectedBranch.Wrapf("bump on %q", branch)
	}
	l := e.l.With(zap.String("branch", branch))

	upstream := e.remote + "/" + e.protected
	if err := e.repo.Fetch(ctx, e.remote, fmt.Sprintf("+refs/heads/%s:refs/remotes/%s", e.protected, upstream)); err != nil {
		return nil, remoteError(err)
	}
	head, err := e.repo.RevParse(ctx, "HEAD")
	if err != nil {
		return nil, err
	}
	base, err := e.repo.MergeBase(ctx, head, upstream)
	if err != nil {
		return nil, err
	}
	l.Debug("merge base", zap.String("head", head), zap.String("base", base))

	pkgs, err := e.ws.Packages()
	if err != nil {
		return nil, err
	}

	since, err := e.since(ctx, pkgs, head, base, sinceTag)
	if err != nil {
		return nil, err
	}

	plans, err := e.plan(ctx, pkgs, since, head)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		l.Info("nothing to release")
		return nil, status.ErrNothingToRelease.Wrapf("no commit with an impact on %s since the last release", branch)
	}

	result := &model.BumpResult{Branch: branch}
	for _, p := range plans {
		result.Bumps = append(result.Bumps, model.Bump{
			Package: p.pkg.Name,
			From:    p.pkg.Version.String(),
			To:      p.next.String(),
			Impact:  p.impact,
			Entries: p.entries,
		})
	}
	if e.dryRun {
		l.Info("dry run: nothing written", zap.Int("bumps", len(plans)))
		return result, nil
	}

	for _, p := range plans {
		exists, err := e.repo.TagExists(ctx, p.tag)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, status.ErrPublish.Wrap(gitstatus.ErrTagExists.Wrapf("%s: released versions are immutable", p.tag))
		}
	}

	commit, err := e.write(ctx, plans)
	if err != nil {
		return nil, err
	}
	result.Commit = commit

	tags, err := e.tag(ctx, plans, commit)
	if err != nil {
		return nil, err
	}
	result.Tags = tags

	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	if err = e.repo.Push(ctx, e.remote, branch, names...); err != nil {
		return nil, multierr.Append(remoteError(err), e.untag(ctx, names))
	}

	l.Info("release commit pushed", zap.String("commit", commit), zap.Strings("tags", names))
	return result, nil
}

// since resolves the starting point of the history of each package: its highest release tag
// merged into head, which includes releases already pushed to the feature branch, else the merge base.
func (e *Engine) since(ctx context.Context, pkgs []*model.Package, head, base, sinceTag string) (map[string]string, error) {
	since := make(map[string]string, len(pkgs))
	if sinceTag != "" {
		for _, pkg := range pkgs {
			since[pkg.Name] = sinceTag
		}
		return since, nil
	}

	tags, err := e.repo.Tags(ctx, head)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*semver.Version)
	for _, tag := range tags {
		pv, ok := e.tags.Parse(tag)
		if !ok {
			continue
		}
		v, err := semver.NewVersion(pv.Version)
		if err != nil {
			continue
		}
		if current, found := latest[pv.Name]; !found || v.GreaterThan(current) {
			latest[pv.Name] = v
			since[pv.Name] = tag
		}
	}
	for _, pkg := range pkgs {
		if _, found := since[pkg.Name]; !found {
			since[pkg.Name] = base
		}
	}
	return since, nil
}

// plan the bumps of all packages
func (e *Engine) plan(ctx context.Context, pkgs []*model.Package, since map[string]string, head string) ([]plan, error) {
	var plans []plan
	for _, pkg := range pkgs {
		commits, err := e.repo.Log(ctx, since[pkg.Name]+".."+head, pkg.Dir)
		if err != nil {
			return nil, err
		}

		p := plan{pkg: pkg, since: since[pkg.Name]}
		// oldest first in changelogs
		for i := len(commits) - 1; i >= 0; i-- {
			commit := commits[i]
			if e.guard.Automated(commit.Message) || !owns(pkgs, pkg, commit) {
				continue
			}
			entry := e.classifier.Classify(commit)
			if entry.Impact == model.ImpactNone {
				continue
			}
			p.impact = model.Max(p.impact, entry.Impact)
			p.entries = append(p.entries, entry)
		}
		if p.impact == model.ImpactNone {
			continue
		}

		next, err := model.NextVersion(pkg.Version, p.impact)
		if err != nil {
			return nil, err
		}
		p.next = next
		p.tag = e.tags.Render(model.PackageVersion{Name: pkg.Name, Version: next.String()})
		plans = append(plans, p)

		e.l.Info("package bump",
			zap.String("package", pkg.Name),
			zap.String("since", p.since),
			zap.Stringer("impact", p.impact),
			zap.String("from", pkg.Version.String()),
			zap.String("to", next.String()),
			zap.Int("entries", len(p.entries)),
		)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].pkg.Name < plans[j].pkg.Name })
	return plans, nil
}

// owns tells if a commit touches files of a package, rather than only files of a package nested in it
func owns(pkgs []*model.Package, pkg *model.Package, commit model.Commit) bool {
	if len(commit.Files) == 0 {
		return true
	}
	for _, file := range commit.Files {
		if workspace.Owner(pkgs, file) == pkg {
			return true
		}
	}
	return false
}

// write versions and changelogs, build, and commit. On failure, every file is restored and no commit is made.
func (e *Engine) write(ctx context.Context, plans []plan) (string, error) {
	paths := make([]string, 0, 2*len(plans))
	for _, p := range plans {
		paths = append(paths, p.pkg.Manifest, p.pkg.Changelog)
	}
	snap, err := e.ws.Snapshot(paths...)
	if err != nil {
		return "", err
	}

	commit, err := e.apply(ctx, plans, paths)
	if err != nil {
		if rerr := snap.Restore(); rerr != nil {
			return "", multierr.Append(err, fmt.Errorf("restoring workspace: %w", rerr))
		}
		return "", err
	}
	return commit, nil
}

func (e *Engine) apply(ctx context.Context, plans []plan, paths []string) (string, error) {
	date := e.now()
	released := make([]model.PackageVersion, 0, len(plans))
	lines := make([]string, 0, len(plans))

	for _, p := range plans {
		if err := e.ws.SetVersion(p.pkg, p.next); err != nil {
			return "", err
		}
		current, err := e.ws.ReadChangelog(p.pkg)
		if err != nil {
			return "", err
		}
		section := changelog.Render(p.next.String(), date, p.entries)
		if err = e.ws.WriteChangelog(p.pkg, changelog.Prepend(current, section)); err != nil {
			return "", err
		}
		pv := model.PackageVersion{Name: p.pkg.Name, Version: p.next.String()}
		released = append(released, pv)
		lines = append(lines, fmt.Sprintf("%s: %s -> %s (%s)", p.pkg.Name, p.pkg.Version, p.next, p.impact))
	}

	if err := e.builder.Build(ctx, e.repo.Dir(), released); err != nil {
		e.l.Warn("build failed: restoring workspace", zap.Error(err))
		return "", err
	}

	if err := e.repo.Add(ctx, paths...); err != nil {
		return "", err
	}
	return e.repo.Commit(ctx, e.guard.Message(released, strings.Join(lines, "\n")), e.author)
}

// tag the release commit
func (e *Engine) tag(ctx context.Context, plans []plan, commit string) ([]model.ReleaseTag, error) {
	tags := make([]model.ReleaseTag, 0, len(plans))
	created := make([]string, 0, len(plans))
	for _, p := range plans {
		pv := model.PackageVersion{Name: p.pkg.Name, Version: p.next.String()}
		if err := e.repo.Tag(ctx, p.tag, commit, "Release "+pv.String(), e.author); err != nil {
			if errors.Is(err, gitstatus.ErrTagExists) {
				err = status.ErrPublish.Wrap(err)
			}
			return nil, multierr.Append(err, e.untag(ctx, created))
		}
		created = append(created, p.tag)
		tags = append(tags, model.ReleaseTag{Package: pv.Name, Version: pv.Version, Commit: commit, Name: p.tag})
	}
	return tags, nil
}

// untag removes local tags which could not be pushed
func (e *Engine) untag(ctx context.Context, names []string) error {
	var err error
	for _, name := range names {
		err = multierr.Append(err, e.repo.DeleteTag(context.WithoutCancel(ctx), name))
	}
	return err
}

// remoteError classifies a failed exchange with the remote
func remoteError(err error) error {
	switch {
	case errors.Is(err, gitstatus.ErrAuthRejected):
		return status.ErrAuth.Wrap(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, status.ErrTimeout):
		return status.ErrTimeout.Wrap(err)
	default:
		return status.ErrPublish.Wrap(err)
	}
}
