package bump

import (
	"time"

	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/changelog"
	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/oneconcern/monorel/pkg/model"
	"go.uber.org/zap"
)

// Option is a functor to build a bump engine with some options
type Option func(*Engine)

// Logger for the engine
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// Remote to fetch from and push to
func Remote(remote string) Option {
	return func(e *Engine) {
		if remote != "" {
			e.remote = remote
		}
	}
}

// ProtectedBranch the engine refuses to write to
func ProtectedBranch(branch string) Option {
	return func(e *Engine) {
		if branch != "" {
			e.protected = branch
		}
	}
}

// Classifier infers the impact of commits
func Classifier(c changelog.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// Builder validates bumped packages before anything is committed
func Builder(b build.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// Guard formats and recognizes automation commits
func Guard(g guard.Guard) Option {
	return func(e *Engine) {
		e.guard = g
	}
}

// TagFormat renders release tags
func TagFormat(f *model.TagFormat) Option {
	return func(e *Engine) {
		if f != nil {
			e.tags = f
		}
	}
}

// Author of automation commits and tags
func Author(id model.Identity) Option {
	return func(e *Engine) {
		if id.Name != "" && id.Email != "" {
			e.author = id
		}
	}
}

// DryRun computes the bumps without writing anything
func DryRun(enabled bool) Option {
	return func(e *Engine) {
		e.dryRun = enabled
	}
}

// Clock sets the date used in changelogs
func Clock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
