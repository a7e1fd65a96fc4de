package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/lambGirl/umi-tools/pkg/completion"
	"github.com/lambGirl/umi-tools/pkg/filter"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/manifest"
	"github.com/lambGirl/umi-tools/pkg/metrics"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
	"github.com/lambGirl/umi-tools/pkg/workspace"
	"github.com/lambGirl/umi-tools/pkg/writer"
)

// Options controls a build invocation
type Options struct {
	Cwd         string
	Watch       bool
	SourceDir   string
	OutputDir   string
	Concurrency int
}

// Dependencies are the collaborators of an Orchestrator. Transformer is
// required; the rest fall back to no-op or default implementations.
type Dependencies struct {
	Transformer    transform.Transformer
	Recorder       metrics.Recorder
	Notifier       Notifier
	Signaler       completion.Signaler
	WatcherFactory WatcherFactory
	Filter         *filter.Filter
}

// PackageResult is the outcome of one package's initial build
type PackageResult struct {
	Name  string
	Stats Stats
	Err   error
}

// Summary describes a finished invocation
type Summary struct {
	Layout   *workspace.Layout
	Packages []PackageResult
	Duration time.Duration
}

// Failed returns the number of files that failed across all packages
func (s *Summary) Failed() int64 {
	var n int64
	for _, p := range s.Packages {
		n += p.Stats.Failed
	}
	return n
}

// Orchestrator builds every package of a repository concurrently and
// signals the parent process once all initial builds have drained
type Orchestrator struct {
	opts     Options
	logger   logger.Logger
	filter   *filter.Filter
	writer   *writer.Writer
	recorder metrics.Recorder
	notifier Notifier
	signaler completion.Signaler
	watchers WatcherFactory

	mu       sync.Mutex
	builders []*PackageBuilder
}

// New creates an Orchestrator
func New(opts Options, log logger.Logger, deps Dependencies) (*Orchestrator, error) {
	if deps.Transformer == nil {
		return nil, fmt.Errorf("%w: transformer is required", ErrConfiguration)
	}

	cwd, err := filepath.Abs(opts.Cwd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	opts.Cwd = cwd
	if opts.SourceDir == "" {
		opts.SourceDir = "src"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "lib"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}

	o := &Orchestrator{
		opts:     opts,
		logger:   log,
		filter:   deps.Filter,
		recorder: deps.Recorder,
		notifier: deps.Notifier,
		signaler: deps.Signaler,
		watchers: deps.WatcherFactory,
	}
	if o.filter == nil {
		o.filter = filter.Default()
	}
	if o.recorder == nil {
		o.recorder = metrics.NoopRecorder{}
	}
	if o.notifier == nil {
		o.notifier = noopNotifier{}
	}
	if o.signaler == nil {
		o.signaler = completion.NoopSignaler{}
	}
	if o.watchers == nil {
		o.watchers = NewWatcherFactory(o.filter)
	}

	o.writer, err = writer.New(deps.Transformer, log,
		writer.WithRecorder(o.recorder),
		writer.WithDisplayRoot(cwd))
	if err != nil {
		return nil, err
	}

	return o, nil
}

// Discover locates the packages under the working directory and reads every
// manifest. No source file is touched before all manifests are read.
func (o *Orchestrator) Discover() (*workspace.Layout, []*types.Package, error) {
	layout, err := workspace.Locate(o.opts.Cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	packages := make([]*types.Package, 0, len(layout.Packages))
	for _, root := range layout.Packages {
		desc, err := manifest.Load(root)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		packages = append(packages, &types.Package{
			Name:      desc.Name,
			Root:      root,
			SourceDir: filepath.Join(root, o.opts.SourceDir),
			OutputDir: filepath.Join(root, o.opts.OutputDir),
			Manifest:  desc.Manifest,
		})
	}

	return layout, packages, nil
}

// Run builds all packages. Without watch mode it returns once every initial
// build has drained. In watch mode it keeps rebuilding until ctx is done.
// Configuration errors are returned before any output is written and wrap
// ErrConfiguration.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	layout, packages, err := o.Discover()
	if err != nil {
		return nil, err
	}

	o.logger.Info(fmt.Sprintf("Building %d package(s)", len(packages)),
		logger.WithField("layout", layout.Kind.String()),
		logger.WithField("watch", o.opts.Watch))

	tracker := completion.NewTracker(len(packages), o.completionSignaler(len(packages), start))
	o.recorder.SetPendingPackages(tracker.Pending())

	results := make([]PackageResult, len(packages))
	sg, gctx := NewSafeGroup(ctx, o.logger)

	for i, pkg := range packages {
		b := newPackageBuilder(pkg, o)
		o.track(b)

		sg.Go(pkg.Name, func() error {
			stats, err := o.initialBuild(gctx, b, tracker)
			results[i] = PackageResult{Name: pkg.Name, Stats: stats, Err: err}
			if interrupted(err) {
				b.log.Warn("Build interrupted", logger.WithField("files", stats.Files))
				b.Stop()
				return nil
			}
			if err != nil {
				b.log.Error("Build failed", logger.WithField("error", err.Error()))
				return nil
			}

			if o.opts.Watch {
				return b.Watch(gctx)
			}
			b.Stop()
			return nil
		})
	}

	err = sg.Wait()

	summary := &Summary{Layout: layout, Packages: results, Duration: time.Since(start)}
	if err != nil {
		return summary, err
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return summary, errors.Join(errs...)
}

// Builders returns the package builders of the current run
func (o *Orchestrator) Builders() []*PackageBuilder {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*PackageBuilder(nil), o.builders...)
}

// initialBuild decrements the tracker once the package's stream has drained,
// whether or not files failed. An interrupted build never drained and is
// not counted.
func (o *Orchestrator) initialBuild(ctx context.Context, b *PackageBuilder, tracker *completion.Tracker) (Stats, error) {
	stats, err := b.Build(ctx)
	if interrupted(err) {
		return stats, err
	}
	tracker.Done()
	o.recorder.SetPendingPackages(tracker.Pending())
	return stats, err
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (o *Orchestrator) track(b *PackageBuilder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.builders = append(o.builders, b)
}

func (o *Orchestrator) completionSignaler(packages int, start time.Time) completion.Signaler {
	return completion.SignalerFunc(func(message string) error {
		elapsed := time.Since(start)
		o.logger.Success(fmt.Sprintf("Built %d package(s)", packages),
			logger.WithField("duration", elapsed.Round(time.Millisecond).String()))
		o.notifier.NotifyBuildComplete(packages, elapsed)

		if err := o.signaler.Signal(message); err != nil {
			o.logger.Warn("Failed to signal parent process", logger.WithField("error", err.Error()))
			return err
		}
		return nil
	})
}
