package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultTagFormat renders release tags such as "core@1.3.0"
const DefaultTagFormat = "{name}@{version}"

const (
	namePlaceholder    = "{name}"
	versionPlaceholder = "{version}"
)

// ReleaseTag binds a package version to the exact commit it was cut from.
type ReleaseTag struct {
	Package string `json:"package" yaml:"package"`
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Name    string `json:"tag" yaml:"tag"`
}

// PackageVersion of this tag
func (t ReleaseTag) PackageVersion() PackageVersion {
	return PackageVersion{Name: t.Package, Version: t.Version}
}

// TagFormat renders and parses release tag names
type TagFormat struct {
	format string
	re     *regexp.Regexp
}

// NewTagFormat builds a tag format from a template with {name} and {version} placeholders
func NewTagFormat(format string) (*TagFormat, error) {
	if format == "" {
		format = DefaultTagFormat
	}
	if strings.Count(format, namePlaceholder) != 1 || strings.Count(format, versionPlaceholder) != 1 {
		return nil, fmt.Errorf("tag format %q must contain {name} and {version} exactly once", format)
	}
	pattern := regexp.QuoteMeta(format)
	pattern = strings.Replace(pattern, regexp.QuoteMeta(namePlaceholder), `(?P<name>.+?)`, 1)
	pattern = strings.Replace(pattern, regexp.QuoteMeta(versionPlaceholder), `(?P<version>v?\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]*)?)`, 1)
	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return nil, err
	}
	return &TagFormat{format: format, re: re}, nil
}

// MustTagFormat is like NewTagFormat but panics on error
func MustTagFormat(format string) *TagFormat {
	f, err := NewTagFormat(format)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *TagFormat) String() string {
	return f.format
}

// Render the tag name for a package version
func (f *TagFormat) Render(pv PackageVersion) string {
	return strings.NewReplacer(namePlaceholder, pv.Name, versionPlaceholder, pv.Version).Replace(f.format)
}

// Parse a tag name into a package version. It returns false if the tag is not a release tag.
func (f *TagFormat) Parse(tag string) (PackageVersion, bool) {
	m := f.re.FindStringSubmatch(tag)
	if m == nil {
		return PackageVersion{}, false
	}
	name := m[f.re.SubexpIndex("name")]
	version := m[f.re.SubexpIndex("version")]
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v")); err != nil {
		return PackageVersion{}, false
	}
	return PackageVersion{Name: name, Version: version}, true
}
