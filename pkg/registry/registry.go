// Package registry publishes released package versions.
//
// A registry is an external system: publishing a version twice is
// refused with status.ErrAlreadyPublished, and any other failure is
// reported as status.ErrPublish.
package registry

import (
	"context"

	"github.com/oneconcern/monorel/pkg/model"
	"github.com/spf13/afero"
)

// Registry knows how to publish package versions
type Registry interface {
	String() string

	// Has tells if a package version is already published
	Has(context.Context, model.PackageVersion) (bool, error)

	// Publish a release from its snapshot
	Publish(context.Context, Release) error
}

// Release is a package version to publish, along with the exact snapshot it was tagged from
type Release struct {
	Tag model.ReleaseTag

	// Root is the directory of the snapshot on the local file system
	Root string

	// Fs is the snapshot, rooted at the repository root
	Fs afero.Fs

	// Dir of the package in the snapshot
	Dir string
}

// PackageVersion of the release
func (r Release) PackageVersion() model.PackageVersion {
	return r.Tag.PackageVersion()
}
