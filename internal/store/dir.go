package store

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/3worlds/tw-apps-sub001/internal/vfs"
)

// stagingPrefix marks files written by PutAll that are not yet committed.
const stagingPrefix = ".tmp-"

// DirStore keeps each artifact as a file in one directory.
//
// PutAll stages every entry under a ".tmp-" name, then renames the staged
// files into place once all writes succeeded. A crash between the two phases
// can leave staging files behind; PurgeStaging removes them.
type DirStore struct {
	fs  vfs.FS
	dir string
}

// NewDirStore opens (and creates if needed) a directory store.
func NewDirStore(fsys vfs.FS, dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
	}
	return &DirStore{fs: fsys, dir: dir}, nil
}

// Ensure DirStore implements Store.
var _ Store = (*DirStore)(nil)

// Dir returns the storage directory.
func (s *DirStore) Dir() string { return s.dir }

// PutAll implements Store.
func (s *DirStore) PutAll(entries []Entry) error {
	for _, e := range entries {
		if err := validName(e.Name); err != nil {
			return err
		}
	}

	staged := make([]string, 0, len(entries))
	for _, e := range entries {
		tmp := s.fs.Join(s.dir, stagingPrefix+e.Name)
		if err := s.fs.WriteFile(tmp, e.Data, 0o644); err != nil {
			// The failed write may have left a partial file.
			return errors.Join(err, s.removeAll(append(staged, tmp)))
		}
		staged = append(staged, tmp)
	}

	committed := make([]string, 0, len(entries))
	for i, e := range entries {
		final := s.fs.Join(s.dir, e.Name)
		if err := s.fs.Rename(staged[i], final); err != nil {
			return errors.Join(err, s.removeAll(append(committed, staged[i:]...)))
		}
		committed = append(committed, final)
	}
	return nil
}

// Get implements Store.
func (s *DirStore) Get(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := s.fs.ReadFile(s.fs.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

// Delete implements Store.
func (s *DirStore) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.remove(s.fs.Join(s.dir, name))
}

// List implements Store. Staging files are never listed.
func (s *DirStore) List(prefix string) ([]string, error) {
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, stagingPrefix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Location implements Store.
func (s *DirStore) Location(name string) string {
	return s.fs.Join(s.dir, name)
}

// PurgeStaging removes staging files left by an interrupted PutAll.
// It returns the number of files removed.
func (s *DirStore) PurgeStaging() (int, error) {
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var errs []error
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		if err := s.remove(s.fs.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Close implements Store. DirStore holds no resources.
func (s *DirStore) Close() error { return nil }

func (s *DirStore) remove(p string) error {
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// removeAll is the best-effort rollback of a failed PutAll.
func (s *DirStore) removeAll(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := s.remove(p); err != nil {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
	}
	return errors.Join(errs...)
}
