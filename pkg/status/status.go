// Package status declares the error taxonomy of release runs.
//
// Every engine returns errors wrapping one of these sentinels, so that the
// trigger controller can decide the outcome of a run and report a
// structured cause without inspecting engine internals.
package status

import (
	"context"

	"github.com/oneconcern/monorel/pkg/errors"
)

var (
	// ErrAuth indicates that the push credential is absent or was rejected by the remote.
	// Fatal, never retried: credential issues require human intervention.
	ErrAuth = errors.New("authentication error")

	// ErrBuild indicates that the build step failed. No commit is produced.
	ErrBuild = errors.New("build error")

	// ErrNothingToRelease indicates that no commit since the last release has a nonzero impact.
	// This is not a failure: the run succeeds as a no-op.
	ErrNothingToRelease = errors.New("nothing to release")

	// ErrPublish indicates a failure to publish changes to the remote or the registry:
	// non-fast-forward push, tag push failure, registry rejection or deployment failure.
	ErrPublish = errors.New("publish error")

	// ErrPartialPublish indicates that some packages were published before a failure.
	ErrPartialPublish = errors.New("partial publish failure")

	// ErrAlreadyPublished indicates that a package version already exists in the registry.
	ErrAlreadyPublished = errors.New("already published")

	// ErrTimeout indicates that a step exceeded the configured wall-clock timeout.
	ErrTimeout = errors.New("timeout")

	// ErrProtectedBranch indicates an attempt to write directly to the protected branch.
	ErrProtectedBranch = errors.New("refusing to write to the protected branch")

	// ErrNotProtected indicates that a commit to publish is not reachable from the protected branch.
	ErrNotProtected = errors.New("commit is not on the protected branch")

	// ErrInvalidEvent indicates a malformed trigger event payload.
	ErrInvalidEvent = errors.New("invalid trigger event")

	// ErrInvalidConfig indicates an invalid or inconsistent configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var causes = []struct {
	err  error
	name string
}{
	// order matters: most specific first
	{ErrPartialPublish, "PartialPublishFailure"},
	{ErrTimeout, "Timeout"},
	{context.DeadlineExceeded, "Timeout"},
	{ErrAlreadyPublished, "AlreadyPublished"},
	{ErrAuth, "AuthError"},
	{ErrBuild, "BuildError"},
	{ErrNothingToRelease, "NothingToRelease"},
	{ErrProtectedBranch, "ProtectedBranch"},
	{ErrNotProtected, "NotProtected"},
	{ErrPublish, "PublishError"},
	{ErrInvalidEvent, "InvalidEvent"},
	{ErrInvalidConfig, "InvalidConfig"},
}

// Cause returns the name of the taxonomy class of err, as reported in run logs.
//
// Unclassified errors yield "Internal", and a nil error yields the empty string.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range causes {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Internal"
}

// Fatal tells if err must terminate the run as failed.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNothingToRelease) && !errors.Is(err, ErrAlreadyPublished)
}
