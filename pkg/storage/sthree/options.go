package sthree

import (
	"net/http"

	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Option for an S3 store
type Option func(*s3FS)

// Bucket holding the objects
func Bucket(bucket string) Option {
	return func(fs *s3FS) {
		fs.bucket = bucket
	}
}

// Endpoint of the S3 API, e.g. "s3.amazonaws.com" or "minio.internal:9000"
func Endpoint(endpoint string) Option {
	return func(fs *s3FS) {
		if endpoint != "" {
			fs.endpoint = endpoint
		}
	}
}

// Region of the bucket
func Region(region string) Option {
	return func(fs *s3FS) {
		fs.region = region
	}
}

// UseSSL toggles TLS on the connection to the endpoint
func UseSSL(enabled bool) Option {
	return func(fs *s3FS) {
		fs.secure = enabled
	}
}

// Credentials for the S3 API. By default, credentials are taken from the standard AWS environment.
func Credentials(creds *credentials.Credentials) Option {
	return func(fs *s3FS) {
		if creds != nil {
			fs.creds = creds
		}
	}
}

// Transport overrides the http transport, e.g. for testing
func Transport(rt http.RoundTripper) Option {
	return func(fs *s3FS) {
		fs.transport = rt
	}
}

// Prefix stores all objects below a key prefix
func Prefix(prefix string) Option {
	return func(fs *s3FS) {
		fs.prefix = prefix
	}
}
