// Package store persists snapshot artifacts.
//
// An artifact is a named blob. Names are flat (no directories) and unique
// within a project's storage area. Two backends implement Store:
//
//   - DirStore keeps one file per artifact in the storage directory.
//   - BadgerStore keeps artifacts as keys in an embedded BadgerDB.
//
// Both write a batch of artifacts all-or-nothing from the caller's point of
// view: PutAll either leaves every entry readable or, on failure, removes
// what it managed to write before returning the error.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/3worlds/tw-apps-sub001/internal/vfs"
)

// Errors returned by stores.
var (
	// ErrNotFound indicates the named artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName indicates an empty name or one containing a path separator.
	ErrInvalidName = errors.New("invalid artifact name")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// Entry is one artifact to write.
type Entry struct {
	Name string
	Data []byte
}

// Store is the artifact storage used by snapshots.
type Store interface {
	// PutAll writes every entry or none of them.
	PutAll(entries []Entry) error

	// Get returns the artifact content, or ErrNotFound.
	Get(name string) ([]byte, error)

	// Delete removes an artifact. Deleting an absent artifact is not an error.
	Delete(name string) error

	// List returns the sorted names starting with prefix.
	List(prefix string) ([]string, error)

	// Location returns a human-readable handle for the artifact
	// (an absolute path for DirStore).
	Location(name string) string

	// Close releases backend resources.
	Close() error
}

// Backend names.
const (
	BackendDir    = "dir"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	// Backend is BackendDir or BackendBadger.
	Backend string

	// Dir is the project's storage directory.
	Dir string

	// FS is the file system for BackendDir. Defaults to the OS.
	FS vfs.FS

	// SyncWrites makes badger fsync every transaction.
	SyncWrites bool

	// InMemory runs badger without touching disk (tests).
	InMemory bool

	// Logger receives backend diagnostics. May be nil.
	Logger *slog.Logger
}

// Open opens the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendDir, "":
		fsys := opts.FS
		if fsys == nil {
			fsys = vfs.NewOSFS()
		}
		return NewDirStore(fsys, opts.Dir)
	case BackendBadger:
		return OpenBadger(BadgerConfig{
			Path:       opts.Dir,
			InMemory:   opts.InMemory,
			SyncWrites: opts.SyncWrites,
			Logger:     opts.Logger,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
