package workspace

import (
	"errors"
	"path/filepath"
)

// DefaultStorageDir is the storage area relative to the project root.
var DefaultStorageDir = filepath.Join(".cfgedit", "history")

// ErrInvalidPath indicates an empty project root.
var ErrInvalidPath = errors.New("invalid project path")

// Project locates a project on disk and its history storage area.
type Project struct {
	// Root is the absolute project directory.
	Root string
	// StorageDir is the absolute directory holding snapshot artifacts.
	StorageDir string
}

// NewProject resolves a project. An empty storageDir selects
// DefaultStorageDir; a relative one is taken relative to root.
func NewProject(root, storageDir string) (Project, error) {
	if root == "" {
		return Project{}, ErrInvalidPath
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Project{}, err
	}

	if storageDir == "" {
		storageDir = DefaultStorageDir
	}
	if !filepath.IsAbs(storageDir) {
		storageDir = filepath.Join(abs, storageDir)
	}
	return Project{Root: abs, StorageDir: filepath.Clean(storageDir)}, nil
}

// Name returns the display name of the project.
func (p Project) Name() string {
	return filepath.Base(p.Root)
}

// Resolve returns the path of an artifact inside the storage area.
func (p Project) Resolve(name string) string {
	return filepath.Join(p.StorageDir, name)
}
