// Package publish implements the publish engine.
//
// After a release commit is merged into the protected branch, the engine
// publishes every package version tagged in the history of that branch
// which is not yet in the registry. Each tagged commit is checked out in a
// detached worktree, built once, and its packages are published from that
// exact snapshot.
package publish

import (
	"context"
	"fmt"
	"sort"

	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/git"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/registry"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/oneconcern/monorel/pkg/workspace"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultRemote          = "origin"
	DefaultProtectedBranch = "main"
)

// Repo is the git repository the engine publishes from
type Repo interface {
	Dir() string
	Fetch(ctx context.Context, remote string, refspecs ...string) error
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	Tags(ctx context.Context, mergedInto string) ([]string, error)
	TagTarget(ctx context.Context, tag string) (string, error)
	Checkout(ctx context.Context, rev string) (*git.Worktree, error)
}

// Engine publishes released package versions
type Engine struct {
	repo      Repo
	ws        *workspace.Workspace
	registry  registry.Registry
	builder   build.Builder
	deployer  build.Deployer
	tags      *model.TagFormat
	remote    string
	protected string
	l         *zap.Logger
}

// New publish engine
func New(repo Repo, ws *workspace.Workspace, reg registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		ws:        ws,
		registry:  reg,
		builder:   build.Nop{},
		deployer:  build.Nop{},
		tags:      model.MustTagFormat(model.DefaultTagFormat),
		remote:    DefaultRemote,
		protected: DefaultProtectedBranch,
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// snapshot groups the release tags anchored to the same commit
type snapshot struct {
	commit string
	tags   []model.ReleaseTag
}

// Publish every unpublished release tag reachable from commit.
//
// Publishing is idempotent: versions found in the registry are reported as already published.
// When some packages were published before a failure, the error is a *PartialPublishFailure
// and the returned result lists what was published.
func (e *Engine) Publish(ctx context.Context, commit string) (*model.PublishResult, error) {
	if commit == "" {
		commit = "HEAD"
	}
	upstream := e.remote + "/" + e.protected
	l := e.l.With(zap.String("commit", commit))

	if err := e.repo.Fetch(ctx, e.remote,
		fmt.Sprintf("+refs/heads/%s:refs/remotes/%s", e.protected, upstream),
		"refs/tags/*:refs/tags/*",
	); err != nil {
		return nil, status.ErrPublish.Wrap(err)
	}
	protected, err := e.repo.IsAncestor(ctx, commit, upstream)
	if err != nil {
		return nil, err
	}
	if !protected {
		return nil, status.ErrNotProtected.Wrapf("%s is not reachable from %s", commit, upstream)
	}

	result := &model.PublishResult{Commit: commit, Published: []model.PackageVersion{}}
	snapshots, err := e.pending(ctx, commit, result)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		l.Info("nothing to publish", zap.Int("already_published", len(result.AlreadyPublished)))
		return result, nil
	}

	for _, snap := range snapshots {
		if err = e.publishSnapshot(ctx, snap, result); err != nil {
			return result, err
		}
	}

	if len(result.Published) > 0 {
		if err = e.deployer.Deploy(ctx, e.repo.Dir(), result.Published); err != nil {
			l.Error("deployment failed", zap.Error(err))
			return result, err
		}
	}
	l.Info("publication complete",
		zap.Int("published", len(result.Published)),
		zap.Int("already_published", len(result.AlreadyPublished)),
	)
	return result, nil
}

// pending collects the release tags not yet published, grouped by tagged commit
func (e *Engine) pending(ctx context.Context, commit string, result *model.PublishResult) ([]*snapshot, error) {
	names, err := e.repo.Tags(ctx, commit)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	seen := make(map[model.PackageVersion]bool)
	byCommit := make(map[string]*snapshot)
	for _, name := range names {
		pv, ok := e.tags.Parse(name)
		if !ok || seen[pv] {
			continue
		}
		seen[pv] = true

		published, err := e.registry.Has(ctx, pv)
		if err != nil {
			return nil, err
		}
		if published {
			result.AlreadyPublished = append(result.AlreadyPublished, pv)
			continue
		}

		target, err := e.repo.TagTarget(ctx, name)
		if err != nil {
			return nil, err
		}
		snap, found := byCommit[target]
		if !found {
			snap = &snapshot{commit: target}
			byCommit[target] = snap
		}
		snap.tags = append(snap.tags, model.ReleaseTag{Package: pv.Name, Version: pv.Version, Commit: target, Name: name})
	}

	snapshots := make([]*snapshot, 0, len(byCommit))
	for _, snap := range byCommit {
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].commit < snapshots[j].commit })
	return snapshots, nil
}

// publishSnapshot builds a tagged snapshot once, then publishes each of its packages
func (e *Engine) publishSnapshot(ctx context.Context, snap *snapshot, result *model.PublishResult) error {
	l := e.l.With(zap.String("snapshot", snap.commit))

	wt, err := e.repo.Checkout(ctx, snap.commit)
	if err != nil {
		return e.fail(result, versions(snap.tags), err)
	}
	defer func() {
		if cerr := wt.Close(context.WithoutCancel(ctx)); cerr != nil {
			l.Warn("could not remove worktree", zap.String("dir", wt.Dir), zap.Error(cerr))
		}
	}()

	pkgs, err := e.ws.WithFs(wt.Fs).Packages()
	if err != nil {
		return e.fail(result, versions(snap.tags), err)
	}
	dirs := make(map[string]string, len(pkgs))
	for _, pkg := range pkgs {
		dirs[pkg.Name] = pkg.Dir
	}

	releases := make([]registry.Release, 0, len(snap.tags))
	for _, tag := range snap.tags {
		dir, found := dirs[tag.Package]
		if !found {
			l.Warn("tagged package not found in snapshot", zap.String("tag", tag.Name))
			continue
		}
		releases = append(releases, registry.Release{Tag: tag, Root: wt.Dir, Fs: wt.Fs, Dir: dir})
	}
	if len(releases) == 0 {
		return nil
	}

	pvs := make([]model.PackageVersion, 0, len(releases))
	for _, release := range releases {
		pvs = append(pvs, release.PackageVersion())
	}
	if err = e.builder.Build(ctx, wt.Dir, pvs); err != nil {
		return e.fail(result, pvs, err)
	}

	for _, release := range releases {
		pv := release.PackageVersion()
		err = e.registry.Publish(ctx, release)
		switch {
		case err == nil:
			result.Published = append(result.Published, pv)
			l.Info("package published", zap.Stringer("package", pv), zap.String("registry", e.registry.String()))
		case errors.Is(err, status.ErrAlreadyPublished):
			result.AlreadyPublished = append(result.AlreadyPublished, pv)
			l.Info("package already published", zap.Stringer("package", pv))
		default:
			return e.fail(result, []model.PackageVersion{pv}, err)
		}
	}
	return nil
}

// fail stops the publication: a partial failure when something was already published
func (e *Engine) fail(result *model.PublishResult, failed []model.PackageVersion, err error) error {
	e.l.Error("publication failed", zap.String("failed", join(failed)), zap.Error(err))
	if len(result.Published) > 0 {
		return &PartialPublishFailure{
			Published: append([]model.PackageVersion(nil), result.Published...),
			Failed:    failed,
			Err:       err,
		}
	}
	if errors.Is(err, status.ErrPublish) || errors.Is(err, status.ErrBuild) || errors.Is(err, status.ErrTimeout) {
		return err
	}
	return status.ErrPublish.Wrap(err)
}

func versions(tags []model.ReleaseTag) []model.PackageVersion {
	pvs := make([]model.PackageVersion, 0, len(tags))
	for _, tag := range tags {
		pvs = append(pvs, tag.PackageVersion())
	}
	return pvs
}
