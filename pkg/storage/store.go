// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
)

// Put modes
const (
	// NoOverWrite makes Put fail with status.ErrExists when the key is already present
	NoOverWrite = true
	// OverWrite replaces any existing object
	OverWrite = false
)

// Store implementations know how to write entries to a K/V model.Store.
//
// Typically this is something file system-like. Examples are S3, local FS, NFS, ...
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
}

// GetBytes reads a whole object in memory
func GetBytes(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// PutBytes writes an object from memory
func PutBytes(ctx context.Context, store Store, key string, data []byte, exclusive bool) error {
	return store.Put(ctx, key, bytes.NewReader(data), exclusive)
}
