// Package watcher streams file change events below a directory tree using fsnotify
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/lambGirl/umi-tools/pkg/logger"
)

// Op is the kind of change reported by an Event
type Op string

const (
	OpAdd    Op = "add"
	OpChange Op = "change"
	OpUnlink Op = "unlink"
	OpRename Op = "rename"
)

// Event is one change notification for a path
type Event struct {
	Path string
	Op   Op
}

const queueSize = 64

// Option configures a Watcher
type Option func(*Watcher)

// WithExclude skips directories for which exclude returns true
func WithExclude(exclude func(dir string) bool) Option {
	return func(w *Watcher) {
		w.exclude = exclude
	}
}

// Watcher watches a directory tree recursively. Directories created after
// the watcher is armed are added as they appear. There is no settling delay:
// every notification becomes one Event.
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	log     logger.Logger
	exclude func(dir string) bool

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a watcher armed on root. Events that happened before New
// returns are not replayed.
func New(root string, log logger.Logger, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		root:    root,
		log:     log,
		exclude: func(string) bool { return false },
		events:  make(chan Event, queueSize),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirectory(root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	w.wg.Add(1)
	go w.processEvents()

	log.Debug("Watching directory tree", logger.WithField("root", root))
	return w, nil
}

// Events returns the change stream. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns errors reported by the underlying watcher
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and closes the Events and Errors channels
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		close(w.events)
		close(w.errors)
	})
	return err
}

// List returns the watched directories
func (w *Watcher) List() []string {
	return w.fsw.WatchList()
}

// addDirectory adds dir and its subdirectories. Only a failure on the root
// of the walk is returned.
func (w *Watcher) addDirectory(dir string) error {
	if dir != w.root && w.exclude(dir) {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subdir := filepath.Join(dir, entry.Name())
		if err := w.addDirectory(subdir); err != nil {
			w.log.Warn(fmt.Sprintf("Failed to watch subdirectory %s: %v", subdir, err))
		}
	}
	return nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			op, ok := convertOp(event.Op)
			if !ok {
				continue
			}

			if op == OpAdd {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.addCreatedDirectory(event.Name) {
						return
					}
					continue
				}
			}

			if !w.send(Event{Path: event.Name, Op: op}) {
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			default:
				w.log.Error(fmt.Sprintf("Watcher error: %v", err))
			}
		}
	}
}

// addCreatedDirectory watches a directory that appeared after arming and
// reports the files already inside it, which fsnotify never saw.
func (w *Watcher) addCreatedDirectory(dir string) bool {
	if w.exclude(dir) {
		return true
	}
	if err := w.addDirectory(dir); err != nil {
		w.log.Warn(fmt.Sprintf("Failed to watch directory %s: %v", dir, err))
		return true
	}

	open := true
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.exclude(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.send(Event{Path: path, Op: OpAdd}) {
			open = false
			return filepath.SkipAll
		}
		return nil
	})
	return open
}

func (w *Watcher) send(e Event) bool {
	select {
	case w.events <- e:
		return true
	case <-w.done:
		return false
	}
}

// convertOp maps fsnotify operations; chmod-only events are dropped
func convertOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpAdd, true
	case op.Has(fsnotify.Write):
		return OpChange, true
	case op.Has(fsnotify.Remove):
		return OpUnlink, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	default:
		return "", false
	}
}
