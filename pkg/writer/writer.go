// Package writer applies the routed transform to a file and writes the result
// into the package's output tree.
package writer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/metrics"
	"github.com/lambGirl/umi-tools/pkg/router"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
)

// DefaultCacheSize is the number of output digests kept for change detection
const DefaultCacheSize = 4096

// ErrOutsideSource is returned for a path that is not under the package source root
var ErrOutsideSource = errors.New("path is outside the source directory")

// digest identifies the last content written to an output path
type digest struct {
	sum     [sha256.Size]byte
	size    int64
	modTime time.Time
}

// Option configures a Writer
type Option func(*Writer)

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Writer) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithDisplayRoot makes logged paths relative to root
func WithDisplayRoot(root string) Option {
	return func(w *Writer) {
		w.displayRoot = root
	}
}

// WithCacheSize sets how many output digests are remembered
func WithCacheSize(n int) Option {
	return func(w *Writer) {
		w.cacheSize = n
	}
}

// Writer turns FileTasks into files under a package's output directory.
// Writes to the same output path are serialized.
type Writer struct {
	transformer transform.Transformer
	log         logger.Logger
	recorder    metrics.Recorder
	displayRoot string
	cacheSize   int

	locks   *lockTable
	digests *lru.Cache[string, digest]
}

// New creates a Writer
func New(t transform.Transformer, log logger.Logger, opts ...Option) (*Writer, error) {
	w := &Writer{
		transformer: t,
		log:         log,
		recorder:    metrics.NoopRecorder{},
		cacheSize:   DefaultCacheSize,
		locks:       newLockTable(),
	}
	for _, opt := range opts {
		opt(w)
	}

	cache, err := lru.New[string, digest](w.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create digest cache: %w", err)
	}
	w.digests = cache
	return w, nil
}

// Load reads sourcePath into a FileTask for pkg
func (w *Writer) Load(pkg *types.Package, sourcePath string) (*types.FileTask, error) {
	rel, err := filepath.Rel(pkg.SourceDir, sourcePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideSource, sourcePath)
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", sourcePath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", sourcePath)
	}

	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sourcePath, err)
	}

	return &types.FileTask{
		SourcePath:   sourcePath,
		RelativePath: types.NormalizeRelPath(rel),
		Content:      content,
		Mode:         info.Mode().Perm(),
	}, nil
}

// Process transforms or copies task into pkg's output tree according to d and
// returns the written path. A transform failure is returned as a
// *transform.TransformError and nothing is written.
func (w *Writer) Process(ctx context.Context, pkg *types.Package, task *types.FileTask, d router.Decision) (string, error) {
	outRel := router.OutputPath(task.RelativePath, d.Transform)
	outPath := filepath.Join(pkg.OutputDir, filepath.FromSlash(outRel))

	unlock := w.locks.lock(outPath)
	defer unlock()

	target := "none"
	data := task.Content
	mode := task.Mode
	if d.Transform {
		target = string(d.Profile.Target)
		out, err := w.transformer.Transform(ctx, task.Content, task.SourcePath, d.Profile)
		if err != nil {
			w.recorder.IncFile(pkg.Name, target, metrics.OutcomeFailed)
			failure := *transform.AsTransformError(task.SourcePath, err)
			failure.Path = w.display(task.SourcePath)
			return "", &failure
		}
		data = out
		mode = 0o644
	}
	if mode == 0 {
		mode = 0o644
	}

	if d.Transform {
		w.log.Transform(w.display(task.SourcePath), logger.WithField(logger.TargetKey, target))
	}

	if w.unchanged(outPath, data) {
		w.recorder.IncFile(pkg.Name, target, metrics.OutcomeUnchanged)
		w.log.Debug("Output unchanged", logger.WithField("path", outRel))
		return outPath, nil
	}

	if err := writeFileAtomic(outPath, data, mode); err != nil {
		return "", err
	}
	w.remember(outPath, data)

	if d.Transform {
		w.recorder.IncFile(pkg.Name, target, metrics.OutcomeTransformed)
	} else {
		w.recorder.IncFile(pkg.Name, target, metrics.OutcomeCopied)
		w.log.Debug("Copied", logger.WithField("path", outRel))
	}
	return outPath, nil
}

// Forget drops cached digests under dir, used when an output tree is recreated
func (w *Writer) Forget(dir string) {
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	for _, key := range w.digests.Keys() {
		if strings.HasPrefix(key, prefix) {
			w.digests.Remove(key)
		}
	}
}

func (w *Writer) display(path string) string {
	if w.displayRoot == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(w.displayRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// unchanged reports whether outPath already holds data, as last written by w
func (w *Writer) unchanged(outPath string, data []byte) bool {
	prev, ok := w.digests.Get(outPath)
	if !ok {
		return false
	}
	info, err := os.Stat(outPath)
	if err != nil || info.Size() != prev.size || !info.ModTime().Equal(prev.modTime) {
		return false
	}
	sum := sha256.Sum256(data)
	return bytes.Equal(sum[:], prev.sum[:])
}

func (w *Writer) remember(outPath string, data []byte) {
	info, err := os.Stat(outPath)
	if err != nil {
		w.digests.Remove(outPath)
		return
	}
	w.digests.Add(outPath, digest{
		sum:     sha256.Sum256(data),
		size:    info.Size(),
		modTime: info.ModTime(),
	})
}
