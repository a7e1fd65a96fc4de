// Package filter selects the source files of a package that take part in a build
package filter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/lambGirl/umi-tools/pkg/types"
)

// DefaultExclusions are the subtrees and file names never published:
// fixtures, the dev and production tooling caches, unit and e2e tests.
var DefaultExclusions = []string{
	"**/fixtures/**",
	"**/.umi/**",
	"**/.umi-production/**",
	"**/*.test.js",
	"**/*.test.ts",
	"**/*.e2e.js",
	"**/*.e2e.ts",
}

// queueSize bounds how far the walk may run ahead of its consumer
const queueSize = 64

// Entry is one enumerated file, or a walk error for a single path
type Entry struct {
	// Path is the absolute path of the file
	Path string
	// Rel is the slash-separated path relative to the source root
	Rel string
	Err error
}

// Filter matches relative paths against exclusion globs
type Filter struct {
	patterns []string
	matchers []matcher
}

// matcher is one compiled exclusion. A pattern without a slash, such as
// "*.story.js", is matched against the base name at any depth.
type matcher struct {
	glob glob.Glob
	base bool
}

// New compiles the given exclusion patterns. Patterns are relative to the
// source root; a leading "**/" also covers the root itself.
func New(patterns ...string) (*Filter, error) {
	f := &Filter{
		patterns: append([]string(nil), patterns...),
		matchers: make([]matcher, 0, len(patterns)),
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclusion pattern %q: %w", p, err)
		}
		f.matchers = append(f.matchers, matcher{glob: g, base: !strings.Contains(p, "/")})
	}
	return f, nil
}

// Default returns a filter with DefaultExclusions
func Default() *Filter {
	f, err := New(DefaultExclusions...)
	if err != nil {
		panic(err)
	}
	return f
}

// Patterns returns the exclusion patterns of f
func (f *Filter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// Excluded reports whether rel, relative to the source root, is excluded
func (f *Filter) Excluded(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	base := path.Base(strings.TrimSuffix(rel, "/"))
	for _, m := range f.matchers {
		if m.base {
			if m.glob.Match(base) {
				return true
			}
			continue
		}
		if m.glob.Match(rel) || m.glob.Match("/"+rel) {
			return true
		}
	}
	return false
}

// ExcludedDir reports whether everything below the directory rel is excluded
func (f *Filter) ExcludedDir(rel string) bool {
	return rel != "." && f.Excluded(rel+"/")
}

// Enumerate walks sourceDir lazily and streams every file that is not
// excluded. The channel is closed when the walk ends or ctx is done. Each
// call walks the filesystem again. A missing sourceDir yields no entries.
// Symlinked directories are walked once per resolved directory; dangling links
// are skipped.
func (f *Filter) Enumerate(ctx context.Context, sourceDir string) <-chan Entry {
	out := make(chan Entry, queueSize)

	go func() {
		defer close(out)

		w := &walk{
			filter:    f,
			ctx:       ctx,
			out:       out,
			sourceDir: sourceDir,
			visited:   make(map[string]bool),
		}
		if resolved, err := filepath.EvalSymlinks(sourceDir); err == nil {
			w.visited[resolved] = true
		}
		_ = w.dir(sourceDir)
	}()

	return out
}

// walk is the state of one Enumerate call
type walk struct {
	filter    *Filter
	ctx       context.Context
	out       chan<- Entry
	sourceDir string
	visited   map[string]bool
	stopped   bool
}

func (w *walk) send(e Entry) bool {
	select {
	case w.out <- e:
		return true
	case <-w.ctx.Done():
		w.stopped = true
		return false
	}
}

// dir walks root, which is sourceDir or a symlinked directory below it.
// Reported paths keep the link so they stay relative to sourceDir.
func (w *walk) dir(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if w.stopped {
			return filepath.SkipAll
		}
		if err != nil {
			if p == w.sourceDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			if !w.send(Entry{Path: p, Err: fmt.Errorf("failed to read %s: %w", p, err)}) {
				return filepath.SkipAll
			}
			return nil
		}

		rel, relErr := filepath.Rel(w.sourceDir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if w.filter.ExcludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return w.link(p, rel)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return w.file(p, rel)
	})
}

func (w *walk) file(p, rel string) error {
	if w.filter.Excluded(rel) {
		return nil
	}
	if !w.send(Entry{Path: p, Rel: types.NormalizeRelPath(rel)}) {
		return filepath.SkipAll
	}
	return nil
}

// link resolves a symlink met during the walk
func (w *walk) link(p, rel string) error {
	info, err := os.Stat(p)
	if err != nil {
		return nil
	}
	if info.Mode().IsRegular() {
		return w.file(p, rel)
	}
	if !info.IsDir() || w.filter.ExcludedDir(rel) {
		return nil
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil || w.visited[resolved] {
		return nil
	}
	w.visited[resolved] = true

	// WalkDir does not descend into a symlink root's target, so walk
	// through the link with a trailing separator.
	if err := w.dir(p + string(filepath.Separator)); err != nil {
		return err
	}
	if w.stopped {
		return filepath.SkipAll
	}
	return nil
}
