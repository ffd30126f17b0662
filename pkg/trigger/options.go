package trigger

import (
	"time"

	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/oneconcern/monorel/pkg/metrics"
	"go.uber.org/zap"
)

// Option is a functor to build a controller with some options
type Option func(*Controller)

// Logger for the controller
func Logger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.l = l
		}
	}
}

// Guard suppresses bumps triggered by automation commits
func Guard(g guard.Guard) Option {
	return func(c *Controller) {
		c.guard = g
	}
}

// ProtectedBranch merge requests must target, and pushes to which are published
func ProtectedBranch(branch string) Option {
	return func(c *Controller) {
		if branch != "" {
			c.protected = branch
		}
	}
}

// RequiredApprovals before a merge request is bumped
func RequiredApprovals(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.approvals = n
		}
	}
}

// Timeout of engine runs
func Timeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Credentials acquires a push credential for each run. Without it, engines run with the ambient git credentials.
func Credentials(a Authenticator) Option {
	return func(c *Controller) {
		c.auth = a
	}
}

// Metrics records finished runs
func Metrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Clock of the controller
func Clock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}
