package publish

import (
	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/model"
	"go.uber.org/zap"
)

// Option is a functor to build a publish engine with some options
type Option func(*Engine)

// Logger for the engine
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// Remote to fetch the protected branch and tags from
func Remote(remote string) Option {
	return func(e *Engine) {
		if remote != "" {
			e.remote = remote
		}
	}
}

// ProtectedBranch published commits must be reachable from
func ProtectedBranch(branch string) Option {
	return func(e *Engine) {
		if branch != "" {
			e.protected = branch
		}
	}
}

// Builder runs once per tagged snapshot before publishing
func Builder(b build.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// Deployer runs after all publications
func Deployer(d build.Deployer) Option {
	return func(e *Engine) {
		if d != nil {
			e.deployer = d
		}
	}
}

// TagFormat parses release tags
func TagFormat(f *model.TagFormat) Option {
	return func(e *Engine) {
		if f != nil {
			e.tags = f
		}
	}
}
