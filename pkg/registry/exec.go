package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
)

// Exec publishes with shell commands, e.g. "npm publish" or "twine upload dist/*".
//
// Commands run in the package directory of the snapshot, with MONOREL_PACKAGE,
// MONOREL_VERSION and MONOREL_TAG set. The check command tells if a version is
// already published by exiting with status 0: without it, publishing is not idempotent.
type Exec struct {
	PublishCommand string
	CheckCommand   string
	Runner         *build.Runner

	// Dir is where check commands run
	Dir string
}

var _ Registry = &Exec{}

func (e *Exec) String() string {
	return "exec"
}

func env(pv model.PackageVersion, tag string) []string {
	return []string{
		build.EnvPackage + "=" + pv.Name,
		build.EnvVersion + "=" + pv.Version,
		build.EnvTag + "=" + tag,
	}
}

// Has runs the check command
func (e *Exec) Has(ctx context.Context, pv model.PackageVersion) (bool, error) {
	if e.CheckCommand == "" {
		return false, status.ErrInvalidConfig.Wrapf("exec registry: no check command to tell if %s is published", pv)
	}
	err := e.Runner.Run(ctx, e.Dir, e.CheckCommand, env(pv, "")...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, build.ErrCommandFailed):
		return false, nil
	default:
		return false, err
	}
}

// Publish runs the publish command
func (e *Exec) Publish(ctx context.Context, release Release) error {
	pv := release.PackageVersion()
	dir := filepath.Join(release.Root, filepath.FromSlash(release.Dir))
	err := e.Runner.Run(ctx, dir, e.PublishCommand, env(pv, release.Tag.Name)...)
	if err == nil {
		return nil
	}
	if errors.Is(err, status.ErrTimeout) {
		return err
	}
	return status.ErrPublish.Wrap(fmt.Errorf("publishing %s: %w", pv, err))
}
