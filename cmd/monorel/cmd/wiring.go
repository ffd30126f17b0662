package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/bump"
	"github.com/oneconcern/monorel/pkg/config"
	"github.com/oneconcern/monorel/pkg/credential"
	"github.com/oneconcern/monorel/pkg/dlogger"
	"github.com/oneconcern/monorel/pkg/git"
	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/oneconcern/monorel/pkg/metrics"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/publish"
	"github.com/oneconcern/monorel/pkg/registry"
	"github.com/oneconcern/monorel/pkg/storage"
	"github.com/oneconcern/monorel/pkg/storage/localfs"
	"github.com/oneconcern/monorel/pkg/storage/sthree"
	"github.com/oneconcern/monorel/pkg/trigger"
	"github.com/oneconcern/monorel/pkg/workspace"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// app holds the components wired from the configuration
type app struct {
	cfg     *config.Config
	l       *zap.Logger
	repo    *git.Repository
	ws      *workspace.Workspace
	runner  *build.Runner
	tags    *model.TagFormat
	guard   guard.Guard
	metrics *metrics.Metrics
}

func newApp(cfg *config.Config) (*app, error) {
	l, err := dlogger.GetLoggerWithEncoding(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	dir, err := filepath.Abs(monorelFlags.root.repo)
	if err != nil {
		return nil, err
	}
	tags, err := model.NewTagFormat(cfg.TagFormat)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:  cfg,
		l:    l,
		repo: git.NewRepository(dir),
		ws: workspace.New(afero.NewBasePathFs(afero.NewOsFs(), dir),
			workspace.Patterns(cfg.Packages...),
			workspace.Manifest(cfg.Manifest),
			workspace.Changelog(cfg.Changelog),
			workspace.Logger(l),
		),
		runner:  build.NewRunner(build.Output(os.Stderr, os.Stderr), build.RunnerLogger(l)),
		tags:    tags,
		guard:   guard.New(cfg.AutomationCommitMarker, cfg.AutomationTrailer),
		metrics: metrics.New(),
	}, nil
}

// registry the packages are published to
func (a *app) registry() (registry.Registry, error) {
	r := a.cfg.Registry
	switch r.Kind {
	case config.RegistryLocalFS:
		path, err := expandHome(r.Path)
		if err != nil {
			return nil, err
		}
		store := localfs.New(afero.NewBasePathFs(afero.NewOsFs(), path))
		return registry.NewStore(storage.Instrument(a.l, store), registry.StoreLogger(a.l)), nil

	case config.RegistryS3:
		opts := []sthree.Option{
			sthree.Endpoint(r.Endpoint),
			sthree.Region(r.Region),
			sthree.UseSSL(r.UseSSL),
			sthree.Prefix(r.Prefix),
		}
		if accessKey := os.Getenv(r.AccessKeyEnv); accessKey != "" {
			opts = append(opts, sthree.Credentials(
				credentials.NewStaticV4(accessKey, os.Getenv(r.SecretKeyEnv), os.Getenv("AWS_SESSION_TOKEN")),
			))
		}
		store, err := sthree.New(sthree.Bucket(r.Bucket), opts...)
		if err != nil {
			return nil, err
		}
		return registry.NewStore(storage.Instrument(a.l, store), registry.StoreLogger(a.l)), nil

	case config.RegistryExec:
		return &registry.Exec{
			PublishCommand: r.PublishCommand,
			CheckCommand:   r.CheckCommand,
			Runner:         a.runner,
			Dir:            a.repo.Dir(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported registry kind %q", r.Kind)
	}
}

// expandHome resolves a leading ~/ to the home directory of the user
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("registry path %q: %w", path, err)
	}
	return filepath.Join(home, path[2:]), nil
}

func (a *app) bumpEngine(dryRun bool) *bump.Engine {
	builder, _ := a.cfg.Commands(a.runner)
	return bump.New(a.repo, a.ws,
		bump.Logger(a.l),
		bump.Remote(a.cfg.Remote),
		bump.ProtectedBranch(a.cfg.ProtectedBranch),
		bump.Builder(builder),
		bump.Guard(a.guard),
		bump.TagFormat(a.tags),
		bump.Author(model.Identity{Name: a.cfg.Author.Name, Email: a.cfg.Author.Email}),
		bump.DryRun(dryRun),
	)
}

func (a *app) publishEngine() (*publish.Engine, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	builder, deployer := a.cfg.Commands(a.runner)
	return publish.New(a.repo, a.ws, reg,
		publish.Logger(a.l),
		publish.Remote(a.cfg.Remote),
		publish.ProtectedBranch(a.cfg.ProtectedBranch),
		publish.Builder(builder),
		publish.Deployer(deployer),
		publish.TagFormat(a.tags),
	), nil
}

func (a *app) broker(ctx context.Context) (*credential.Broker, error) {
	c := a.cfg.Credential
	opts := []credential.Option{
		credential.Logger(a.l),
		credential.RemoteName(a.cfg.Remote),
		credential.TokenEnv(c.TokenEnv),
		credential.Username(c.Username),
	}
	if c.OIDCIssuer != "" {
		verifier, err := credential.NewOIDCVerifier(ctx, c.OIDCIssuer, c.OIDCAudience)
		if err != nil {
			return nil, err
		}
		opts = append(opts, credential.IdentityToken(c.IDTokenEnv, verifier))
	}
	return credential.NewBroker(a.repo, opts...), nil
}

func (a *app) controller(ctx context.Context) (*trigger.Controller, error) {
	publisher, err := a.publishEngine()
	if err != nil {
		return nil, err
	}
	broker, err := a.broker(ctx)
	if err != nil {
		return nil, err
	}
	return trigger.New(a.bumpEngine(false), publisher,
		trigger.Logger(a.l),
		trigger.Guard(a.guard),
		trigger.ProtectedBranch(a.cfg.ProtectedBranch),
		trigger.RequiredApprovals(a.cfg.RequiredApprovals),
		trigger.Timeout(a.cfg.Timeout),
		trigger.Credentials(trigger.Broker(broker)),
		trigger.Metrics(a.metrics),
	), nil
}

// flush writes the metrics textfile, when configured, and the buffered logs
func (a *app) flush() {
	if a.cfg.MetricsTextfile != "" {
		if err := a.metrics.WriteToTextfile(a.cfg.MetricsTextfile); err != nil {
			a.l.Warn("could not write metrics", zap.String("file", a.cfg.MetricsTextfile), zap.Error(err))
		}
	}
	_ = a.l.Sync()
}
