package workspace

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Workspace is a view of the packages of a repository
type Workspace struct {
	fs        afero.Fs
	patterns  []string
	manifest  string
	changelog string
	l         *zap.Logger
}

// New workspace over a file system rooted at the repository
func New(fs afero.Fs, opts ...Option) *Workspace {
	w := &Workspace{
		fs:        fs,
		patterns:  []string{DefaultPattern},
		manifest:  DefaultManifest,
		changelog: DefaultChangelog,
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(w)
	}
	return w
}

// Fs of the workspace
func (w *Workspace) Fs() afero.Fs {
	return w.fs
}

// WithFs returns a copy of the workspace over another file system, e.g. a snapshot
func (w *Workspace) WithFs(fs afero.Fs) *Workspace {
	c := *w
	c.fs = fs
	return &c
}

func clean(p string) string {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "" {
		return "."
	}
	return p
}

// manifestCandidates lists the manifest file names probed in a package directory
func (w *Workspace) manifestCandidates() []string {
	ext := path.Ext(w.manifest)
	base := strings.TrimSuffix(w.manifest, ext)
	switch strings.ToLower(ext) {
	case ".json":
		return []string{w.manifest, base + ".yaml", base + ".yml"}
	case ".yaml", ".yml":
		return []string{w.manifest, base + ".json"}
	default:
		return []string{w.manifest}
	}
}

// Packages discovers the packages matching the workspace patterns, sorted by name.
//
// A matched directory without a manifest is not a package. Package names must be unique.
func (w *Workspace) Packages() ([]*model.Package, error) {
	seen := make(map[string]bool)
	byName := make(map[string]*model.Package)

	for _, pattern := range w.patterns {
		dirs, err := w.match(pattern)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			if seen[dir] {
				continue
			}
			seen[dir] = true

			pkg, err := w.load(dir)
			if err != nil {
				return nil, err
			}
			if pkg == nil {
				continue
			}
			if other, exists := byName[pkg.Name]; exists {
				return nil, fmt.Errorf("package %q is declared twice: in %s and %s", pkg.Name, other.Dir, pkg.Dir)
			}
			byName[pkg.Name] = pkg
		}
	}

	pkgs := make([]*model.Package, 0, len(byName))
	for _, pkg := range byName {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })

	w.l.Debug("discovered packages", zap.Int("count", len(pkgs)), zap.Strings("patterns", w.patterns))
	return pkgs, nil
}

func (w *Workspace) match(pattern string) ([]string, error) {
	pattern = clean(pattern)
	if pattern == "." {
		return []string{"."}, nil
	}
	matches, err := afero.Glob(w.fs, pattern)
	if err != nil {
		return nil, fmt.Errorf("bad package pattern %q: %w", pattern, err)
	}
	dirs := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := w.fs.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, clean(match))
	}
	sort.Strings(dirs)
	return dirs, nil
}

// load a package from its directory. It returns nil if there is no manifest.
func (w *Workspace) load(dir string) (*model.Package, error) {
	for _, candidate := range w.manifestCandidates() {
		manifest := clean(path.Join(dir, candidate))
		data, err := afero.ReadFile(w.fs, manifest)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		fields, err := parseManifest(manifest, data)
		if err != nil {
			return nil, err
		}
		name := fields.Name
		if name == "" {
			name = path.Base(dir)
			if dir == "." {
				return nil, fmt.Errorf("manifest %s must declare a package name", manifest)
			}
		}
		version, err := semver.StrictNewVersion(fields.Version)
		if err != nil {
			return nil, fmt.Errorf("package %s: invalid version %q in %s: %w", name, fields.Version, manifest, err)
		}
		return &model.Package{
			Name:      name,
			Dir:       dir,
			Version:   version,
			Manifest:  manifest,
			Changelog: clean(path.Join(dir, w.changelog)),
		}, nil
	}
	return nil, nil
}

// Owner returns the package owning a repository file, or nil.
// Nested packages own their files, not their parent.
func Owner(pkgs []*model.Package, file string) *model.Package {
	var owner *model.Package
	for _, pkg := range pkgs {
		if !pkg.Contains(file) {
			continue
		}
		if owner == nil || len(clean(pkg.Dir)) > len(clean(owner.Dir)) {
			owner = pkg
		}
	}
	return owner
}

// SetVersion rewrites the version in the manifest of a package
func (w *Workspace) SetVersion(pkg *model.Package, version *semver.Version) error {
	data, err := afero.ReadFile(w.fs, pkg.Manifest)
	if err != nil {
		return err
	}
	out, err := setManifestVersion(pkg.Manifest, data, version.String())
	if err != nil {
		return fmt.Errorf("updating %s: %w", pkg.Manifest, err)
	}
	if err = w.write(pkg.Manifest, out); err != nil {
		return err
	}
	w.l.Debug("manifest updated", zap.String("package", pkg.Name), zap.String("version", version.String()))
	return nil
}

// ReadChangelog returns the changelog of a package, or an empty string if it does not exist yet
func (w *Workspace) ReadChangelog(pkg *model.Package) (string, error) {
	data, err := afero.ReadFile(w.fs, pkg.Changelog)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteChangelog replaces the changelog of a package
func (w *Workspace) WriteChangelog(pkg *model.Package, content string) error {
	return w.write(pkg.Changelog, []byte(content))
}

func (w *Workspace) write(name string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := w.fs.Stat(name); err == nil {
		mode = info.Mode().Perm()
	}
	return afero.WriteFile(w.fs, name, data, mode)
}
