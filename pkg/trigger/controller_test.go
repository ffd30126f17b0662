package trigger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/oneconcern/monorel/pkg/metrics"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBumper struct {
	result   *model.BumpResult
	err      error
	block    bool
	branches []string
}

func (b *fakeBumper) Bump(ctx context.Context, branch, _ string) (*model.BumpResult, error) {
	b.branches = append(b.branches, branch)
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return b.result, b.err
}

type fakePublisher struct {
	result  *model.PublishResult
	err     error
	commits []string
}

func (p *fakePublisher) Publish(_ context.Context, commit string) (*model.PublishResult, error) {
	p.commits = append(p.commits, commit)
	return p.result, p.err
}

type fakeLease struct {
	valid      bool
	releaseErr error
	released   int
}

func (l *fakeLease) Valid() bool { return l.valid }

func (l *fakeLease) Release(context.Context) error {
	l.released++
	return l.releaseErr
}

type fakeAuth struct {
	lease *fakeLease
	err   error
	runs  []string
}

func (a *fakeAuth) Acquire(_ context.Context, run *model.Run) (Lease, error) {
	a.runs = append(a.runs, run.ID)
	if a.err != nil {
		return nil, a.err
	}
	return a.lease, nil
}

func approved(approvals int, message string) model.Event {
	return model.Event{
		Type:          model.EventMergeRequestApproved,
		SourceBranch:  "feature/retries",
		TargetBranch:  "main",
		CommitID:      "abc123",
		Approvals:     approvals,
		CommitMessage: message,
	}
}

func pushed(branch string) model.Event {
	return model.Event{Type: model.EventProtectedBranchPush, SourceBranch: branch, CommitID: "def456", CommitMessage: "Merge branch 'feature/retries'"}
}

type fixture struct {
	bumper    *fakeBumper
	publisher *fakePublisher
	auth      *fakeAuth
	metrics   *metrics.Metrics
	logs      *observer.ObservedLogs
	c         *Controller
}

func setup(opts ...Option) *fixture {
	core, logs := observer.New(zap.InfoLevel)
	f := &fixture{
		bumper:    &fakeBumper{result: &model.BumpResult{Branch: "feature/retries", Commit: "release1"}},
		publisher: &fakePublisher{result: &model.PublishResult{Commit: "def456", Published: []model.PackageVersion{{Name: "core", Version: "1.3.0"}}}},
		auth:      &fakeAuth{lease: &fakeLease{valid: true}},
		metrics:   metrics.New(),
		logs:      logs,
	}
	f.c = New(f.bumper, f.publisher, append([]Option{
		Credentials(f.auth),
		Metrics(f.metrics),
		RequiredApprovals(2),
		Logger(zap.New(core)),
	}, opts...)...)
	return f
}

func TestHandleBump(t *testing.T) {
	f := setup()

	run := f.c.Handle(context.Background(), approved(2, "feat(core): add retries"))

	assert.Equal(t, model.StateSucceeded, run.State)
	assert.Equal(t, model.EngineBump, run.Engine)
	assert.Empty(t, run.Cause)
	assert.Equal(t, "release1", run.Bump.Commit)
	assert.Equal(t, []string{"feature/retries"}, f.bumper.branches)
	assert.Empty(t, f.publisher.commits)
	assert.Equal(t, []string{run.ID}, f.auth.runs)
	assert.Equal(t, 1, f.auth.lease.released)
	assert.False(t, run.FinishedAt.IsZero())

	entries := f.logs.FilterMessage("run succeeded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, run.ID, fields["run_id"])
	assert.Equal(t, "feature/retries", fields["branch"])
	assert.Equal(t, "abc123", fields["commit"])
	assert.Equal(t, "bump", fields["engine"])

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "monorel_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandlePublish(t *testing.T) {
	f := setup()

	run := f.c.Handle(context.Background(), pushed("main"))

	assert.Equal(t, model.StateSucceeded, run.State)
	assert.Equal(t, model.EnginePublish, run.Engine)
	assert.Equal(t, []string{"def456"}, f.publisher.commits)
	assert.Len(t, run.Publish.Published, 1)
	assert.Empty(t, f.bumper.branches)
}

func TestHandleSkipped(t *testing.T) {
	for name, event := range map[string]model.Event{
		"automation commit, whatever its approvals": approved(5, "chore: publish core@1.3.0"),
		"automation trailer":                        approved(5, "release\n\nRelease-Bot: core@1.3.0"),
		"not enough approvals":                      approved(1, "feat: x"),
		"other target": func() model.Event {
			e := approved(2, "feat: x")
			e.TargetBranch = "develop"
			return e
		}(),
		"protected source": func() model.Event {
			e := approved(2, "feat: x")
			e.SourceBranch = "main"
			return e
		}(),
		"push to a feature branch": pushed("feature/retries"),
		"unsupported event":        {Type: "schedule", CommitID: "abc"},
	} {
		f := setup()
		run := f.c.Handle(context.Background(), event)

		assert.Equal(t, model.StateSkipped, run.State, name)
		assert.Equal(t, model.EngineNone, run.Engine, name)
		assert.NotEmpty(t, run.Reason, name)
		assert.Empty(t, f.bumper.branches, name)
		assert.Empty(t, f.publisher.commits, name)
		assert.Empty(t, f.auth.runs, "no credential is acquired for skipped runs: %s", name)
		assert.Error(t, run.Transition(model.StateRunning), "skipped is terminal: %s", name)
	}
}

func TestHandleOutcomes(t *testing.T) {
	t.Run("nothing to release", func(t *testing.T) {
		f := setup()
		f.bumper.result, f.bumper.err = nil, status.ErrNothingToRelease.Wrapf("no commit with an impact")

		run := f.c.Handle(context.Background(), approved(2, "docs: readme"))
		assert.Equal(t, model.StateSucceeded, run.State)
		assert.Equal(t, "NothingToRelease", run.Cause)
		assert.Empty(t, run.Error)
		assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(`
# HELP monorel_runs_total Pipeline runs by engine, final state and cause.
# TYPE monorel_runs_total counter
monorel_runs_total{cause="NothingToRelease",engine="bump",state="succeeded"} 1
`), "monorel_runs_total"))
	})

	t.Run("build failure", func(t *testing.T) {
		f := setup()
		f.bumper.result, f.bumper.err = nil, status.ErrBuild.Wrapf("exit status 2")

		run := f.c.Handle(context.Background(), approved(2, "feat: x"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "BuildError", run.Cause)
		assert.Contains(t, run.Error, "exit status 2")
		assert.Equal(t, 1, f.auth.lease.released)
		assert.Len(t, f.logs.FilterMessage("run failed").All(), 1)
	})

	t.Run("partial publication", func(t *testing.T) {
		f := setup()
		f.publisher.err = status.ErrPartialPublish.Wrap(status.ErrPublish.Wrapf("web@0.5.0"))

		run := f.c.Handle(context.Background(), pushed("main"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "PartialPublishFailure", run.Cause)
		require.NotNil(t, run.Publish)
		assert.Len(t, run.Publish.Published, 1)
	})

	t.Run("credential refused", func(t *testing.T) {
		f := setup()
		f.auth.err = status.ErrAuth.Wrapf("no secret in MONOREL_TOKEN")

		run := f.c.Handle(context.Background(), approved(2, "feat: x"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "AuthError", run.Cause)
		assert.Empty(t, f.bumper.branches)
	})

	t.Run("expired credential", func(t *testing.T) {
		f := setup()
		f.auth.lease.valid = false

		run := f.c.Handle(context.Background(), approved(2, "feat: x"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "AuthError", run.Cause)
		assert.Empty(t, f.bumper.branches)
		assert.Equal(t, 1, f.auth.lease.released)
	})

	t.Run("credential release failure", func(t *testing.T) {
		f := setup()
		f.auth.lease.releaseErr = fmt.Errorf("could not restore the remote url")

		run := f.c.Handle(context.Background(), approved(2, "feat: x"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "Internal", run.Cause)
		assert.Contains(t, run.Error, "restore the remote url")
	})

	t.Run("credential release failure after a no-op", func(t *testing.T) {
		f := setup()
		f.bumper.result, f.bumper.err = nil, status.ErrNothingToRelease.Wrapf("no commit with an impact")
		f.auth.lease.releaseErr = fmt.Errorf("restoring remote url: permission denied")

		run := f.c.Handle(context.Background(), approved(2, "docs: readme"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "Internal", run.Cause)
		assert.Contains(t, run.Error, "permission denied")
		assert.Contains(t, run.Error, "nothing to release")
		assert.Empty(t, run.Reason)
	})

	t.Run("credential release failure after a failure", func(t *testing.T) {
		f := setup()
		f.bumper.result, f.bumper.err = nil, status.ErrBuild.Wrapf("exit status 2")
		f.auth.lease.releaseErr = fmt.Errorf("restoring remote url: permission denied")

		run := f.c.Handle(context.Background(), approved(2, "feat: x"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "BuildError", run.Cause, "the engine failure remains the cause")
		assert.Contains(t, run.Error, "permission denied")
	})

	t.Run("timeout", func(t *testing.T) {
		f := setup(Timeout(20 * time.Millisecond))
		f.bumper.block = true

		run := f.c.Handle(context.Background(), approved(2, "feat: x"))
		assert.Equal(t, model.StateFailed, run.State)
		assert.Equal(t, "Timeout", run.Cause)
		assert.Equal(t, 1, f.auth.lease.released)
	})

	t.Run("without credentials", func(t *testing.T) {
		bumper := &fakeBumper{result: &model.BumpResult{}}
		c := New(bumper, &fakePublisher{})

		run := c.Handle(context.Background(), approved(1, "fix: x"))
		assert.Equal(t, model.StateSucceeded, run.State)
		assert.Len(t, bumper.branches, 1)
	})
}
