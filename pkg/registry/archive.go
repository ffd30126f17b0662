package registry

import (
	"archive/tar"
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// archives are reproducible: the same snapshot always yields the same digest
var epoch = time.Unix(0, 0).UTC()

type archive struct {
	data   []byte
	digest string
	files  int
}

// pack a package directory of a snapshot as a zstd compressed tarball
func pack(fs afero.Fs, dir string) (*archive, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(zw)

	root := path.Clean(dir)
	files := 0
	err = afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := path.Clean(p)
		if root != "." {
			rel = strings.TrimPrefix(strings.TrimPrefix(rel, root), "/")
		}
		if rel == "" || rel == "." {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     rel + "/",
				Mode:     int64(info.Mode().Perm()),
				ModTime:  epoch,
			})
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     rel,
			Mode:     int64(info.Mode().Perm()),
			Size:     info.Size(),
			ModTime:  epoch,
		}); err != nil {
			return err
		}
		f, err := fs.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return nil, err
	}
	if err = tw.Close(); err != nil {
		return nil, err
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}

	return &archive{
		data:   buf.Bytes(),
		digest: digest(buf.Bytes()),
		files:  files,
	}, nil
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}

// unpack lists the files of an archive with their content
func unpack(data []byte) (map[string][]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		files[hdr.Name] = content
	}
}
