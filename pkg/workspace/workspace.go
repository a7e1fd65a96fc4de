// Package workspace detects single-package and multi-package repositories
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MarkerFile marks a multi-package workspace root
	MarkerFile = "lerna.json"
	// PackagesDir holds the member packages of a workspace
	PackagesDir = "packages"
)

// ErrPackagesDirMissing is returned when a workspace marker exists without a packages directory
var ErrPackagesDirMissing = errors.New("workspace packages directory not found")

// Kind distinguishes the two repository layouts
type Kind int

const (
	Single Kind = iota
	Multi
)

func (k Kind) String() string {
	if k == Multi {
		return "workspace"
	}
	return "single"
}

// Layout is the result of locating packages under a working directory
type Layout struct {
	Kind     Kind
	Root     string
	Packages []string
}

// IsWorkspace reports whether dir contains the workspace marker
func IsWorkspace(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MarkerFile))
	return err == nil && !info.IsDir()
}

// Locate returns the package roots under cwd. A workspace lists the immediate
// subdirectories of packages/ in directory-listing order, skipping hidden
// entries. Otherwise cwd is the only package.
func Locate(cwd string) (*Layout, error) {
	root, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cwd, err)
	}

	if !IsWorkspace(root) {
		return &Layout{Kind: Single, Root: root, Packages: []string{root}}, nil
	}

	dir := filepath.Join(root, PackagesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPackagesDirMissing, dir)
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	layout := &Layout{Kind: Multi, Root: root, Packages: []string{}}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		pkgDir := filepath.Join(dir, entry.Name())
		if !isDir(entry, pkgDir) {
			continue
		}
		layout.Packages = append(layout.Packages, pkgDir)
	}

	return layout, nil
}

// isDir follows symlinks, as linked packages are common in workspaces
func isDir(entry fs.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
