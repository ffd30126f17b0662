// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// Instrument decorates a store with debug logging of every call
func Instrument(l *zap.Logger, store Store) Store {
	return &instrumentedStore{
		store: store,
		l:     l.With(zap.String("store", store.String())),
	}
}

type instrumentedStore struct {
	store Store
	l     *zap.Logger
}

func (i *instrumentedStore) done(op string, err error, fields ...zap.Field) {
	if err != nil {
		i.l.Debug("storage "+op+" failed", append(fields, zap.Error(err))...)
		return
	}
	i.l.Debug("storage "+op, fields...)
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (bool, error) {
	has, err := i.store.Has(ctx, key)
	i.done("has", err, zap.String("key", key), zap.Bool("found", has))
	return has, err
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rdr, err := i.store.Get(ctx, key)
	i.done("get", err, zap.String("key", key))
	return rdr, err
}

func (i *instrumentedStore) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	err := i.store.Put(ctx, key, rdr, exclusive)
	i.done("put", err, zap.String("key", key), zap.Bool("exclusive", exclusive))
	return err
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}
