package workspace

import "go.uber.org/zap"

// Defaults
const (
	DefaultPattern   = "packages/*"
	DefaultManifest  = "package.yaml"
	DefaultChangelog = "CHANGELOG.md"
)

// Option for a workspace
type Option func(*Workspace)

// Patterns sets the glob patterns locating package directories
func Patterns(patterns ...string) Option {
	return func(w *Workspace) {
		if len(patterns) > 0 {
			w.patterns = patterns
		}
	}
}

// Manifest sets the file name of package manifests
func Manifest(name string) Option {
	return func(w *Workspace) {
		if name != "" {
			w.manifest = name
		}
	}
}

// Changelog sets the file name of package changelogs
func Changelog(name string) Option {
	return func(w *Workspace) {
		if name != "" {
			w.changelog = name
		}
	}
}

// Logger for the workspace
func Logger(l *zap.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.l = l
		}
	}
}
