package vfs

import (
	"errors"
	"io/fs"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by a FaultFS rule.
var ErrInjected = errors.New("injected fault")

// Op names a file operation that FaultFS can fail.
type Op string

// Operations understood by FaultFS.
const (
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpReadDir Op = "readdir"
	OpStat    Op = "stat"
	OpMkdir   Op = "mkdir"
	OpRemove  Op = "remove"
	OpRename  Op = "rename"
)

type faultRule struct {
	op       Op
	contains string
	err      error
	// remaining calls that fail; negative means unlimited
	remaining int
}

// FaultFS wraps another FS and fails selected operations.
// It exists to exercise error paths (disk full, permission denied)
// without touching the real file system.
type FaultFS struct {
	FS

	mu    sync.Mutex
	rules []*faultRule
}

// NewFaultFS wraps inner.
func NewFaultFS(inner FS) *FaultFS {
	return &FaultFS{FS: inner}
}

// Ensure FaultFS implements FS.
var _ FS = (*FaultFS)(nil)

// Fail makes every op on a path containing substr fail with err.
// A nil err means ErrInjected.
func (f *FaultFS) Fail(op Op, substr string, err error) {
	f.FailN(op, substr, -1, err)
}

// FailN is like Fail but only the next n matching calls fail.
func (f *FaultFS) FailN(op Op, substr string, n int, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &faultRule{op: op, contains: substr, err: err, remaining: n})
}

// Reset removes all rules.
func (f *FaultFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

func (f *FaultFS) check(op Op, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rules {
		if r.op != op || r.remaining == 0 || !strings.Contains(p, r.contains) {
			continue
		}
		if r.remaining > 0 {
			r.remaining--
		}
		return &fs.PathError{Op: string(op), Path: p, Err: r.err}
	}
	return nil
}

// ReadFile implements FS.
func (f *FaultFS) ReadFile(p string) ([]byte, error) {
	if err := f.check(OpRead, p); err != nil {
		return nil, err
	}
	return f.FS.ReadFile(p)
}

// WriteFile implements FS.
func (f *FaultFS) WriteFile(p string, data []byte, perm fs.FileMode) error {
	if err := f.check(OpWrite, p); err != nil {
		return err
	}
	return f.FS.WriteFile(p, data, perm)
}

// ReadDir implements FS.
func (f *FaultFS) ReadDir(p string) ([]FileInfo, error) {
	if err := f.check(OpReadDir, p); err != nil {
		return nil, err
	}
	return f.FS.ReadDir(p)
}

// Stat implements FS.
func (f *FaultFS) Stat(p string) (FileInfo, error) {
	if err := f.check(OpStat, p); err != nil {
		return FileInfo{}, err
	}
	return f.FS.Stat(p)
}

// MkdirAll implements FS.
func (f *FaultFS) MkdirAll(p string, perm fs.FileMode) error {
	if err := f.check(OpMkdir, p); err != nil {
		return err
	}
	return f.FS.MkdirAll(p, perm)
}

// Remove implements FS.
func (f *FaultFS) Remove(p string) error {
	if err := f.check(OpRemove, p); err != nil {
		return err
	}
	return f.FS.Remove(p)
}

// Rename implements FS. Rules match against either path.
func (f *FaultFS) Rename(oldPath, newPath string) error {
	if err := f.check(OpRename, oldPath+" -> "+newPath); err != nil {
		return err
	}
	return f.FS.Rename(oldPath, newPath)
}
