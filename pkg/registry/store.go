package registry

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/oneconcern/monorel/pkg/storage"
	storagestatus "github.com/oneconcern/monorel/pkg/storage/status"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Object names in the store, below <name>/<version>/
const (
	ArtifactObject = "package.tar.zst"
	MetadataObject = "release.yaml"
)

// Metadata describes a published version. It is written last: a version is
// published once its metadata exists.
type Metadata struct {
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	Tag         string    `yaml:"tag"`
	Commit      string    `yaml:"commit"`
	Artifact    string    `yaml:"artifact"`
	Digest      string    `yaml:"digest"`
	Size        int       `yaml:"size"`
	Files       int       `yaml:"files"`
	PublishedAt time.Time `yaml:"publishedAt"`
}

// StoreOption configures a store registry
type StoreOption func(*Store)

// StoreLogger sets the logger of a store registry
func StoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// Store publishes versions as compressed archives to a storage.Store
type Store struct {
	store storage.Store
	now   func() time.Time
	l     *zap.Logger
}

var _ Registry = &Store{}

// NewStore builds a registry on top of a storage backend
func NewStore(store storage.Store, opts ...StoreOption) *Store {
	s := &Store{
		store: store,
		now:   time.Now,
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *Store) String() string {
	return "store:" + s.store.String()
}

func key(pv model.PackageVersion, object string) string {
	return path.Join(pv.Name, pv.Version, object)
}

// Has tells if the metadata of the version exists
func (s *Store) Has(ctx context.Context, pv model.PackageVersion) (bool, error) {
	has, err := s.store.Has(ctx, key(pv, MetadataObject))
	if err != nil {
		return false, status.ErrPublish.Wrap(err)
	}
	return has, nil
}

// Publish packs the package directory of the snapshot, then writes the archive and its metadata.
func (s *Store) Publish(ctx context.Context, release Release) error {
	pv := release.PackageVersion()
	has, err := s.Has(ctx, pv)
	if err != nil {
		return err
	}
	if has {
		return status.ErrAlreadyPublished.Wrapf("%s in %s", pv, s.store)
	}

	archive, err := pack(release.Fs, release.Dir)
	if err != nil {
		return status.ErrPublish.Wrap(fmt.Errorf("packing %s: %w", pv, err))
	}

	// a leftover archive from an interrupted publication is replaced: the version is not published until its metadata is
	if err = storage.PutBytes(ctx, s.store, key(pv, ArtifactObject), archive.data, storage.OverWrite); err != nil {
		return status.ErrPublish.Wrap(fmt.Errorf("uploading %s: %w", pv, err))
	}

	meta := Metadata{
		Name:        pv.Name,
		Version:     pv.Version,
		Tag:         release.Tag.Name,
		Commit:      release.Tag.Commit,
		Artifact:    key(pv, ArtifactObject),
		Digest:      archive.digest,
		Size:        len(archive.data),
		Files:       archive.files,
		PublishedAt: s.now().UTC(),
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err = enc.Encode(meta); err != nil {
		return status.ErrPublish.Wrap(err)
	}
	_ = enc.Close()

	if err = storage.PutBytes(ctx, s.store, key(pv, MetadataObject), buf.Bytes(), storage.NoOverWrite); err != nil {
		if errors.Is(err, storagestatus.ErrExists) {
			return status.ErrAlreadyPublished.Wrapf("%s in %s", pv, s.store)
		}
		return status.ErrPublish.Wrap(fmt.Errorf("writing metadata of %s: %w", pv, err))
	}

	s.l.Info("published",
		zap.Stringer("package", pv),
		zap.String("registry", s.String()),
		zap.String("digest", archive.digest),
		zap.Int("files", archive.files),
	)
	return nil
}

// Metadata of a published version
func (s *Store) Metadata(ctx context.Context, pv model.PackageVersion) (*Metadata, error) {
	data, err := storage.GetBytes(ctx, s.store, key(pv, MetadataObject))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err = yaml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Files returns the content of the archive of a published version, after verifying its digest
func (s *Store) Files(ctx context.Context, pv model.PackageVersion) (map[string][]byte, error) {
	meta, err := s.Metadata(ctx, pv)
	if err != nil {
		return nil, err
	}
	data, err := storage.GetBytes(ctx, s.store, meta.Artifact)
	if err != nil {
		return nil, err
	}
	if got := digest(data); got != meta.Digest {
		return nil, fmt.Errorf("corrupted archive for %s: digest is %s, expected %s", pv, got, meta.Digest)
	}
	return unpack(data)
}
