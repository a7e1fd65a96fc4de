package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	pcontext "github.com/lambGirl/umi-tools/pkg/context"
	"github.com/lambGirl/umi-tools/pkg/filter"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/metrics"
	"github.com/lambGirl/umi-tools/pkg/router"
	"github.com/lambGirl/umi-tools/pkg/types"
	"github.com/lambGirl/umi-tools/pkg/writer"
)

// State is the lifecycle phase of a PackageBuilder
type State int32

const (
	StateIdle State = iota
	StateInitialBuild
	StateWatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialBuild:
		return "initial-build"
	case StateWatching:
		return "watching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PackageBuilder owns the output tree of one package. It runs the initial
// build and afterwards turns watch events into single-file rebuilds.
type PackageBuilder struct {
	pkg         *types.Package
	filter      *filter.Filter
	writer      *writer.Writer
	log         logger.Logger
	notifier    Notifier
	recorder    metrics.Recorder
	watchers    WatcherFactory
	concurrency int

	state atomic.Int32
}

func newPackageBuilder(pkg *types.Package, o *Orchestrator) *PackageBuilder {
	return &PackageBuilder{
		pkg:         pkg,
		filter:      o.filter,
		writer:      o.writer,
		log:         o.logger.WithPackage(pkg.Name),
		notifier:    o.notifier,
		recorder:    o.recorder,
		watchers:    o.watchers,
		concurrency: o.opts.Concurrency,
	}
}

// State returns the current lifecycle phase
func (b *PackageBuilder) State() State {
	return State(b.state.Load())
}

// Package returns the package this builder writes
func (b *PackageBuilder) Package() *types.Package {
	return b.pkg
}

// Build clears the output directory and streams the whole source tree into
// it. Per-file failures are logged and counted in Stats.
func (b *PackageBuilder) Build(ctx context.Context) (Stats, error) {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateInitialBuild)) {
		return Stats{}, fmt.Errorf("package %s: build already started (%s)", b.pkg.Name, b.State())
	}

	ctx = pcontext.WithPackage(pcontext.NewSession(ctx, "build"), b.pkg.Name)
	log := logger.WithContext(ctx, b.log)

	log.Pending(fmt.Sprintf("build %s", b.displaySource()))

	if err := os.RemoveAll(b.pkg.OutputDir); err != nil {
		return Stats{}, fmt.Errorf("failed to clear %s: %w", b.pkg.OutputDir, err)
	}
	b.writer.Forget(b.pkg.OutputDir)

	p := &pipeline{
		pkg:         b.pkg,
		filter:      b.filter,
		writer:      b.writer,
		log:         b.log,
		notifier:    b.notifier,
		concurrency: b.concurrency,
	}

	start := time.Now()
	stats, err := p.run(ctx)
	elapsed := time.Since(start)
	b.recorder.ObservePackageBuild(b.pkg.Name, elapsed)

	if err != nil {
		return stats, err
	}

	fields := []logger.Field{
		logger.WithField("files", stats.Files),
		logger.WithField("transformed", stats.Transformed),
		logger.WithField("copied", stats.Copied),
	}
	if stats.Failed > 0 {
		log.Warn(fmt.Sprintf("Built with %d failure(s)", stats.Failed), fields...)
	} else {
		log.Debug("Initial build drained", fields...)
	}
	return stats, nil
}

// Watch arms a watcher on the source directory and rebuilds single files as
// events arrive, until ctx is done or the subscription ends. Events that
// happened before arming are not replayed. A watcher that cannot be armed
// or that fails is logged and stops watching for this package only.
func (b *PackageBuilder) Watch(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateInitialBuild), int32(StateWatching)) {
		return fmt.Errorf("package %s: watch requires a finished initial build (%s)", b.pkg.Name, b.State())
	}
	defer b.state.Store(int32(StateStopped))

	b.log.Pending("start watch", logger.WithField("dir", b.displaySource()))

	src, err := b.watchers(b.pkg, b.log)
	if err != nil {
		b.log.Error("Failed to start watcher", logger.WithField("error", err.Error()))
		return nil
	}
	defer func() {
		if err := src.Close(); err != nil {
			b.log.Warn("Failed to close watcher", logger.WithField("error", err.Error()))
		}
	}()

	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			b.handleEvent(ctx, event.Path, string(event.Op))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			b.log.Error("Watcher error", logger.WithField("error", err.Error()))
		}
	}
}

// Stop marks the builder as stopped. A running Watch returns when its
// context is cancelled.
func (b *PackageBuilder) Stop() {
	b.state.Store(int32(StateStopped))
}

func (b *PackageBuilder) handleEvent(ctx context.Context, path, op string) {
	rel, err := filepath.Rel(b.pkg.SourceDir, path)
	if err != nil {
		rel = path
	}
	b.log.Watch(fmt.Sprintf("[%s] %s", op, filepath.Join(b.displaySource(), rel)))

	info, err := os.Stat(path)
	if err != nil {
		// deletions are not mirrored into the output tree
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if b.filter.Excluded(filepath.ToSlash(rel)) {
		b.log.Debug("Ignoring excluded file", logger.WithField("file", rel))
		return
	}

	if err := b.rebuild(ctx, path); err != nil {
		reportFileError(b.log, b.notifier, path, err)
	}
}

func (b *PackageBuilder) rebuild(ctx context.Context, path string) error {
	task, err := b.writer.Load(b.pkg, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	decision := router.Decide(task.RelativePath, b.pkg.Manifest)
	if _, err := b.writer.Process(ctx, b.pkg, task, decision); err != nil {
		return err
	}
	b.recorder.IncWatchRebuild(b.pkg.Name)
	return nil
}

// displaySource is the source directory relative to the package parent,
// e.g. "core/src", for log lines.
func (b *PackageBuilder) displaySource() string {
	rel, err := filepath.Rel(filepath.Dir(b.pkg.Root), b.pkg.SourceDir)
	if err != nil {
		return b.pkg.SourceDir
	}
	return filepath.ToSlash(rel)
}
