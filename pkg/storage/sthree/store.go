// Package sthree implements a storage.Store on any S3 compatible object store.
package sthree

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oneconcern/monorel/pkg/storage"
	"github.com/oneconcern/monorel/pkg/storage/status"
)

// DefaultEndpoint is AWS S3
const DefaultEndpoint = "s3.amazonaws.com"

// New S3 store
func New(option Option, options ...Option) (storage.Store, error) {
	fs := &s3FS{
		endpoint: DefaultEndpoint,
		secure:   true,
	}
	option(fs)
	for _, apply := range options {
		apply(fs)
	}
	if fs.bucket == "" {
		return nil, status.ErrInvalidResource.Wrapf("no bucket specified")
	}
	if fs.creds == nil {
		fs.creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}

	client, err := minio.New(fs.endpoint, &minio.Options{
		Creds:     fs.creds,
		Secure:    fs.secure,
		Region:    fs.region,
		Transport: fs.transport,
	})
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	fs.client = client
	return fs, nil
}

type s3FS struct {
	bucket    string
	endpoint  string
	region    string
	prefix    string
	secure    bool
	creds     *credentials.Credentials
	transport http.RoundTripper
	client    *minio.Client
}

func (s *s3FS) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + strings.TrimPrefix(key, "/")
}

func (s *s3FS) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(key), minio.StatObjectOptions{})
	if err != nil {
		err = toSentinelErrors(err)
		if isNotExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get head request: %w", err)
	}
	return true, nil
}

func (s *s3FS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	// errors are only surfaced by the first request on the object
	if _, err = obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, toSentinelErrors(err)
	}
	return obj, nil
}

// Put uploads an object. Exclusive puts are conditional writes (If-None-Match), which
// the object store enforces atomically.
func (s *s3FS) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	if exclusive {
		has, err := s.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.Wrapf("key %q", key)
		}
	}
	size, body, err := sized(rdr)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key(key), body, size, putOptions(exclusive))
	return toSentinelErrors(err)
}

func putOptions(exclusive bool) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	if exclusive {
		opts.SetMatchETagExcept("*")
	}
	return opts
}

// sized determines the size of the content to upload, so that small objects
// are sent in a single request rather than a multipart upload.
func sized(rdr io.Reader) (int64, io.Reader, error) {
	if l, ok := rdr.(interface{ Len() int }); ok {
		return int64(l.Len()), rdr, nil
	}
	data, err := io.ReadAll(rdr)
	if err != nil {
		return 0, nil, err
	}
	return int64(len(data)), bytes.NewReader(data), nil
}

func (s *s3FS) String() string {
	if s.prefix != "" {
		return "s3@" + s.bucket + "/" + strings.TrimSuffix(s.prefix, "/")
	}
	return "s3@" + s.bucket
}
