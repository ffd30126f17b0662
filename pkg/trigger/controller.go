// Package trigger decides, for each pipeline event, whether a release engine runs.
//
// A run moves from pending to gated for supported event types, then either
// to skipped or to running one engine, and ends succeeded or failed. Runs
// are never resumed.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/oneconcern/monorel/pkg/credential"
	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/oneconcern/monorel/pkg/metrics"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultProtectedBranch   = "main"
	DefaultRequiredApprovals = 1
	DefaultTimeout           = 30 * time.Minute
)

// Bumper runs the version bump engine
type Bumper interface {
	Bump(ctx context.Context, branch, sinceTag string) (*model.BumpResult, error)
}

// Publisher runs the publish engine
type Publisher interface {
	Publish(ctx context.Context, commit string) (*model.PublishResult, error)
}

// Lease is a credential held for the duration of a run
type Lease interface {
	Valid() bool
	Release(ctx context.Context) error
}

// Authenticator acquires the credential of a run
type Authenticator interface {
	Acquire(ctx context.Context, run *model.Run) (Lease, error)
}

type broker struct {
	*credential.Broker
}

func (b broker) Acquire(ctx context.Context, run *model.Run) (Lease, error) {
	cred, err := b.Broker.Acquire(ctx, run)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Broker adapts a credential broker to the controller
func Broker(b *credential.Broker) Authenticator {
	return broker{Broker: b}
}

// Controller drives runs from pipeline events
type Controller struct {
	bumper    Bumper
	publisher Publisher
	auth      Authenticator
	guard     guard.Guard
	protected string
	approvals int
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
	l         *zap.Logger
}

// New controller dispatching to the bump and publish engines
func New(bumper Bumper, publisher Publisher, opts ...Option) *Controller {
	c := &Controller{
		bumper:    bumper,
		publisher: publisher,
		guard:     guard.New(guard.DefaultMarker, guard.DefaultTrailer),
		protected: DefaultProtectedBranch,
		approvals: DefaultRequiredApprovals,
		timeout:   DefaultTimeout,
		now:       time.Now,
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// Handle an event with a new run, until it reaches a terminal state
func (c *Controller) Handle(ctx context.Context, event model.Event) *model.Run {
	run := model.NewRun(event, c.now())
	l := c.l.With(
		zap.String("run_id", run.ID),
		zap.String("event", string(event.Type)),
		zap.String("branch", event.Branch()),
		zap.String("commit", event.CommitID),
	)
	l.Info("run started")

	if !event.Type.Gated() {
		return c.skip(l, run, fmt.Sprintf("unsupported event type %q", event.Type))
	}
	c.transition(run, model.StateGated)

	engine, reason := c.route(event)
	if engine == model.EngineNone {
		return c.skip(l, run, reason)
	}
	run.Engine = engine
	c.transition(run, model.StateRunning)
	l = l.With(zap.String("engine", string(engine)))
	l.Info("engine running", zap.Duration("timeout", c.timeout))

	err, releaseErr := c.execute(ctx, run)
	return c.finish(l, run, err, releaseErr)
}

// route selects the engine for a gated event, or explains why the run is skipped
func (c *Controller) route(event model.Event) (model.Engine, string) {
	switch event.Type {
	case model.EventMergeRequestApproved:
		switch {
		case !c.guard.ShouldRun(event):
			return model.EngineNone, "commit authored by the release automation"
		case event.TargetBranch != c.protected:
			return model.EngineNone, fmt.Sprintf("merge request targets %q, not the protected branch %q", event.TargetBranch, c.protected)
		case event.SourceBranch == c.protected:
			return model.EngineNone, fmt.Sprintf("merge request from the protected branch %q", c.protected)
		case event.Approvals < c.approvals:
			return model.EngineNone, fmt.Sprintf("%d approval(s), %d required", event.Approvals, c.approvals)
		}
		return model.EngineBump, ""

	case model.EventProtectedBranchPush:
		if event.SourceBranch != c.protected {
			return model.EngineNone, fmt.Sprintf("push to %q, not to the protected branch %q", event.SourceBranch, c.protected)
		}
		return model.EnginePublish, ""
	}
	return model.EngineNone, fmt.Sprintf("unsupported event type %q", event.Type)
}

// execute the engine of a run under the run timeout, holding the run credential.
// A failure to release the credential is reported apart from the engine outcome.
func (c *Controller) execute(parent context.Context, run *model.Run) (err, releaseErr error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	defer func() {
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, status.ErrTimeout) {
			err = status.ErrTimeout.Wrap(err)
		}
	}()

	if c.auth != nil {
		lease, aerr := c.auth.Acquire(ctx, run)
		if aerr != nil {
			return aerr, nil
		}
		defer func() {
			releaseErr = lease.Release(context.WithoutCancel(parent))
		}()
		if !lease.Valid() {
			return status.ErrAuth.Wrapf("credential of run %s is no longer valid", run.ID), nil
		}
	}

	switch run.Engine {
	case model.EngineBump:
		var result *model.BumpResult
		result, err = c.bumper.Bump(ctx, run.Event.SourceBranch, "")
		run.Bump = result
	case model.EnginePublish:
		var result *model.PublishResult
		result, err = c.publisher.Publish(ctx, run.Event.CommitID)
		run.Publish = result
	default:
		err = fmt.Errorf("no engine %q", run.Engine)
	}
	return err, nil
}

// finish a run: it fails on a fatal engine error, and whenever the credential could not be released
func (c *Controller) finish(l *zap.Logger, run *model.Run, err, releaseErr error) *model.Run {
	fatal := status.Fatal(err)
	run.Cause = status.Cause(err)
	if releaseErr != nil {
		if !fatal {
			run.Cause = status.Cause(releaseErr)
		}
		fatal = true
		err = multierr.Append(err, fmt.Errorf("releasing credential: %w", releaseErr))
	}
	if fatal {
		run.Error = err.Error()
		c.transition(run, model.StateFailed)
	} else {
		if err != nil {
			run.Reason = err.Error()
		}
		c.transition(run, model.StateSucceeded)
	}
	run.FinishedAt = c.now()

	fields := []zap.Field{
		zap.String("state", string(run.State)),
		zap.Duration("duration", run.Duration(run.FinishedAt)),
	}
	if run.Cause != "" {
		fields = append(fields, zap.String("cause", run.Cause))
	}
	if run.State == model.StateFailed {
		l.Error("run failed", append(fields, zap.Error(err))...)
	} else {
		l.Info("run succeeded", fields...)
	}
	c.metrics.ObserveRun(run)
	return run
}

func (c *Controller) skip(l *zap.Logger, run *model.Run, reason string) *model.Run {
	run.Reason = reason
	c.transition(run, model.StateSkipped)
	run.FinishedAt = c.now()
	l.Info("run skipped", zap.String("reason", reason))
	c.metrics.ObserveRun(run)
	return run
}

// transition panics on moves the controller never makes
func (c *Controller) transition(run *model.Run, to model.State) {
	if err := run.Transition(to); err != nil {
		panic(err)
	}
}
