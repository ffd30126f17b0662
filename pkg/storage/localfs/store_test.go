// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/storage"
	"github.com/oneconcern/monorel/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHas(t *testing.T) {
	bs := setupStore(t)

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "core/1.3.0/release.yaml")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)

	has, err = bs.Has(context.Background(), "core")
	require.NoError(t, err)
	require.False(t, has, "directories are not keys")
}

func TestGet(t *testing.T) {
	bs := setupStore(t)

	b, err := storage.GetBytes(context.Background(), bs, "sixteentons")
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestPut(t *testing.T) {
	bs := setupStore(t)
	ctx := context.Background()

	err := bs.Put(ctx, "utils/2.0.0/package.tar.zst", bytes.NewBufferString("here we go once again"), storage.NoOverWrite)
	require.NoError(t, err)

	rdr, err := bs.Get(ctx, "utils/2.0.0/package.tar.zst")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "here we go once again", string(b))

	err = bs.Put(ctx, "utils/2.0.0/package.tar.zst", bytes.NewBufferString("again"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, storage.PutBytes(ctx, bs, "utils/2.0.0/package.tar.zst", []byte("short"), storage.OverWrite))
	b, err = storage.GetBytes(ctx, bs, "utils/2.0.0/package.tar.zst")
	require.NoError(t, err)
	assert.Equal(t, "short", string(b))
}

func TestString(t *testing.T) {
	assert.Equal(t, "localfs", New(afero.NewMemMapFs()).String())
	assert.Contains(t, New(afero.NewBasePathFs(afero.NewMemMapFs(), "/registry")).String(), "localfs@")
}

func setupStore(t testing.TB) storage.Store {
	t.Helper()

	fs := afero.NewMemMapFs()
	for key, content := range map[string]string{
		"sixteentons":             "this is the text",
		"core/1.3.0/release.yaml": "name: core\n",
		"web/0.5.0/release.yaml":  "name: web\n",
	} {
		require.NoError(t, afero.WriteFile(fs, key, []byte(content), 0o644))
	}
	return New(fs)
}
