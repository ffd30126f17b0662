package cmd

import (
	"bytes"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/oneconcern/monorel/pkg/config"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/registry"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command line and returns what was printed on stdout
func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

// patchExit records exit codes and messages instead of exiting
func patchExit(t *testing.T) (*[]int, *bytes.Buffer) {
	t.Helper()
	var (
		codes []int
		info  bytes.Buffer
	)
	oldExit, oldInfo, oldFatal := osExit, infoLogger, logFatalf
	osExit = func(code int) { codes = append(codes, code) }
	infoLogger = log.New(&info, "", 0)
	logFatalf = func(format string, args ...interface{}) {
		t.Fatalf(format, args...)
	}
	t.Cleanup(func() {
		osExit, infoLogger, logFatalf = oldExit, oldInfo, oldFatal
	})
	return &codes, &info
}

func patchFs(t *testing.T) afero.Fs {
	t.Helper()
	old := appFs
	appFs = afero.NewMemMapFs()
	t.Cleanup(func() { appFs = old })
	return appFs
}

func TestVersion(t *testing.T) {
	out := execute(t, "version", "--output", "text")
	assert.Regexp(t, `Version:\s+dev`, out)

	out = execute(t, "version", "--output", "json")
	assert.Contains(t, out, `"version": "dev"`)

	out = execute(t, "version", "--output", "yaml")
	assert.Contains(t, out, "version: dev")
}

func TestGuard(t *testing.T) {
	codes, info := patchExit(t)

	execute(t, "guard", "--log-level", "none", "--message", "feat(core): add retries")
	assert.Empty(t, *codes)
	assert.Contains(t, info.String(), "running")

	execute(t, "guard", "--log-level", "none", "--message", "chore: publish core@1.3.0\n\nRelease-Bot: monorel\n")
	assert.Equal(t, []int{1}, *codes)
	assert.Contains(t, info.String(), "skipping")

	execute(t, "guard", "--log-level", "none", "--message", "fix: typo\n\nRelease-Bot: monorel\n")
	assert.Equal(t, []int{1, 1}, *codes, "the trailer alone marks an automation commit")
}

func TestConfigCommands(t *testing.T) {
	_, _ = patchExit(t)
	fs := patchFs(t)

	execute(t, "config", "generate", "--file", "/monorel.yaml")
	generated, err := afero.ReadFile(fs, "/monorel.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(generated), "protectedBranch: main")
	assert.Contains(t, string(generated), "kind: localfs")

	out := execute(t, "config", "show", "--protected-branch", "trunk", "--timeout", "5m")
	assert.Contains(t, out, "protectedBranch: trunk")
	assert.Contains(t, out, "timeout: 5m0s")
	assert.Contains(t, out, "requiredApprovals: 1")
}

func TestRunSkipsUnsupportedEvents(t *testing.T) {
	codes, _ := patchExit(t)
	fs := patchFs(t)
	require.NoError(t, afero.WriteFile(fs, "/event.json",
		[]byte(`{"type": "schedule", "commit": "4f2a9c1e0b", "sourceBranch": "main"}`), 0o644))

	out := execute(t, "run", "--log-level", "none", "--repo", t.TempDir(),
		"--event", "/event.json", "--report", "/report.json", "--output", "text")
	assert.Empty(t, *codes)
	assert.Contains(t, out, "skipped")

	report, err := afero.ReadFile(fs, "/report.json")
	require.NoError(t, err)
	var run model.Run
	require.NoError(t, json.Unmarshal(report, &run))
	assert.Equal(t, model.StateSkipped, run.State)
	assert.Equal(t, model.EventType("schedule"), run.Event.Type)
	assert.NotEmpty(t, run.ID)
}

func TestRegistryWiring(t *testing.T) {
	monorelFlags.root.repo = t.TempDir()

	newTestApp := func(t *testing.T, registry config.Registry) *app {
		cfg := config.Default()
		cfg.LogLevel = "none"
		cfg.Registry = registry
		a, err := newApp(&cfg)
		require.NoError(t, err)
		return a
	}

	t.Run("localfs", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		reg, err := newTestApp(t, config.Registry{Kind: config.RegistryLocalFS, Path: "~/.monorel/registry"}).registry()
		require.NoError(t, err)
		assert.IsType(t, &registry.Store{}, reg)
		assert.True(t, strings.HasPrefix(reg.String(), "store:localfs@"))
		assert.True(t, strings.HasSuffix(reg.String(), filepath.Join(home, ".monorel", "registry")))
	})

	t.Run("s3", func(t *testing.T) {
		t.Setenv("TEST_ACCESS_KEY", "AKIAEXAMPLE")
		t.Setenv("TEST_SECRET_KEY", "secret")
		reg, err := newTestApp(t, config.Registry{
			Kind:         config.RegistryS3,
			Endpoint:     "localhost:9000",
			Bucket:       "releases",
			Prefix:       "mono",
			AccessKeyEnv: "TEST_ACCESS_KEY",
			SecretKeyEnv: "TEST_SECRET_KEY",
		}).registry()
		require.NoError(t, err)
		assert.Equal(t, "store:s3@releases/mono", reg.String())
	})

	t.Run("exec", func(t *testing.T) {
		reg, err := newTestApp(t, config.Registry{
			Kind:           config.RegistryExec,
			PublishCommand: "npm publish",
			CheckCommand:   "npm view $MONOREL_PACKAGE@$MONOREL_VERSION",
		}).registry()
		require.NoError(t, err)
		exec, ok := reg.(*registry.Exec)
		require.True(t, ok)
		assert.Equal(t, "npm publish", exec.PublishCommand)
		assert.NotEmpty(t, exec.CheckCommand)
		assert.Equal(t, monorelFlags.root.repo, exec.Dir)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := newTestApp(t, config.Registry{Kind: "ftp"}).registry()
		require.Error(t, err)
	})
}

func TestFormatters(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, formatBump(&buf, &model.BumpResult{
		Branch: "feature/retries",
		Commit: "0123456789abcdef",
		Bumps: []model.Bump{
			{Package: "core", From: "1.2.0", To: "1.3.0", Impact: model.ImpactMinor, Entries: make([]model.ChangelogEntry, 2)},
		},
	}))
	assert.Contains(t, buf.String(), "released 01234567 on feature/retries")
	assert.Regexp(t, `core\s+1\.2\.0\s+1\.3\.0\s+minor\s+2`, buf.String())

	buf.Reset()
	require.NoError(t, formatPublish(&buf, &model.PublishResult{
		Commit:           "HEAD",
		Published:        []model.PackageVersion{{Name: "core", Version: "1.3.0"}},
		AlreadyPublished: []model.PackageVersion{{Name: "web", Version: "0.5.0"}},
	}))
	assert.Regexp(t, `core\s+1\.3\.0\s+published`, buf.String())
	assert.Regexp(t, `web\s+0\.5\.0\s+already published`, buf.String())

	buf.Reset()
	require.NoError(t, formatPublish(&buf, &model.PublishResult{Commit: "HEAD", Published: []model.PackageVersion{}}))
	assert.Equal(t, "nothing to publish from HEAD\n", buf.String())

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	buf.Reset()
	require.NoError(t, formatRun(&buf, &model.Run{
		ID:         "run-1",
		Event:      model.Event{Type: model.EventProtectedBranchPush, SourceBranch: "main", CommitID: "0123456789abcdef"},
		State:      model.StateFailed,
		Engine:     model.EnginePublish,
		Cause:      "PartialPublishFailure",
		Error:      "published core@1.3.0, failed web@0.5.0",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Publish:    &model.PublishResult{Commit: "0123456789abcdef", Published: []model.PackageVersion{{Name: "core", Version: "1.3.0"}}},
	}))
	out := buf.String()
	assert.Contains(t, out, "protected-branch-push on main at 01234567")
	assert.Contains(t, out, "(PartialPublishFailure)")
	assert.Contains(t, out, "About a minute")
	assert.Regexp(t, `core\s+1\.3\.0\s+published`, out)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, exitCode(status.ErrInvalidConfig.Wrapf("timeout must be positive")))
	assert.Equal(t, exitUsage, exitCode(status.ErrInvalidEvent.Wrapf("missing commit")))
	assert.Equal(t, exitFailure, exitCode(status.ErrBuild.Wrapf("exit status 2")))

	codes, _ := patchExit(t)
	wrapFatalln("read event", status.ErrInvalidEvent.Wrapf("missing commit"))
	assert.Equal(t, []int{exitUsage}, *codes)
}
