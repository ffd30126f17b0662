package model

import (
	"fmt"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Package is a releasable unit of the monorepo.
//
// Dir, Manifest and Changelog are slash-separated paths relative to the repository root.
type Package struct {
	Name      string
	Dir       string
	Version   *semver.Version
	Manifest  string
	Changelog string
}

// Contains tells if a repository file belongs to this package
func (p *Package) Contains(file string) bool {
	dir := path.Clean(p.Dir)
	if dir == "." {
		return true
	}
	file = path.Clean(file)
	return file == dir || strings.HasPrefix(file, dir+"/")
}

// PackageVersion identifies a version of a package
type PackageVersion struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

func (pv PackageVersion) String() string {
	return pv.Name + "@" + pv.Version
}

// NextVersion applies an impact to a version.
//
// Pre-release and build metadata are dropped by any nonzero impact.
func NextVersion(v *semver.Version, impact Impact) (*semver.Version, error) {
	if v == nil {
		return nil, fmt.Errorf("no current version")
	}
	var next semver.Version
	switch impact {
	case ImpactNone:
		return v, nil
	case ImpactPatch:
		next = v.IncPatch()
	case ImpactMinor:
		next = v.IncMinor()
	case ImpactMajor:
		next = v.IncMajor()
	default:
		return nil, fmt.Errorf("unsupported impact: %v", impact)
	}
	return &next, nil
}
