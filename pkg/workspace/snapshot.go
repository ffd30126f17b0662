package workspace

import (
	"os"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

type saved struct {
	data    []byte
	mode    os.FileMode
	missing bool
}

// Snapshot remembers the content of files about to be modified, including
// files which do not exist yet, so that a failed release leaves the
// working copy exactly as it found it.
type Snapshot struct {
	fs    afero.Fs
	files map[string]saved
	order []string
}

// Snapshot the current content of some files
func (w *Workspace) Snapshot(paths ...string) (*Snapshot, error) {
	s := &Snapshot{fs: w.fs, files: make(map[string]saved, len(paths))}
	for _, p := range paths {
		p = clean(p)
		if _, done := s.files[p]; done {
			continue
		}
		info, err := w.fs.Stat(p)
		switch {
		case os.IsNotExist(err):
			s.files[p] = saved{missing: true}
		case err != nil:
			return nil, err
		default:
			data, err := afero.ReadFile(w.fs, p)
			if err != nil {
				return nil, err
			}
			s.files[p] = saved{data: data, mode: info.Mode().Perm()}
		}
		s.order = append(s.order, p)
	}
	return s, nil
}

// Paths covered by the snapshot
func (s *Snapshot) Paths() []string {
	return append([]string{}, s.order...)
}

// Restore every file of the snapshot: files are rewritten, files created since are removed.
func (s *Snapshot) Restore() error {
	var err error
	for _, p := range s.order {
		f := s.files[p]
		if f.missing {
			if rerr := s.fs.Remove(p); rerr != nil && !os.IsNotExist(rerr) {
				err = multierr.Append(err, rerr)
			}
			continue
		}
		err = multierr.Append(err, afero.WriteFile(s.fs, p, f.data, f.mode))
	}
	return err
}
