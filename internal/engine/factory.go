package engine

import (
	"fmt"
	"path/filepath"

	"github.com/lambGirl/umi-tools/internal/watcher"
	"github.com/lambGirl/umi-tools/pkg/completion"
	"github.com/lambGirl/umi-tools/pkg/config"
	"github.com/lambGirl/umi-tools/pkg/filter"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/metrics"
	"github.com/lambGirl/umi-tools/pkg/notifier"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// DependencyFactory creates default implementations of dependencies.
// This follows the dependency injection pattern and removes hidden
// concrete fallbacks from constructors.
type DependencyFactory struct {
	logger   logger.Logger
	config   *config.Config
	registry *prometheus.Registry
}

// NewDependencyFactory creates a new dependency factory. Metrics are
// registered on registry when it is non-nil.
func NewDependencyFactory(log logger.Logger, cfg *config.Config, registry *prometheus.Registry) *DependencyFactory {
	return &DependencyFactory{
		logger:   log,
		config:   cfg,
		registry: registry,
	}
}

// CreateDefaults creates all default dependencies for a build.
// This centralizes dependency creation and makes it explicit and testable.
func (f *DependencyFactory) CreateDefaults() (Dependencies, error) {
	flt, err := f.createFilter()
	if err != nil {
		return Dependencies{}, err
	}

	t, err := f.createTransformer()
	if err != nil {
		return Dependencies{}, err
	}

	return Dependencies{
		Transformer:    t,
		Recorder:       f.createRecorder(),
		Notifier:       f.createNotifier(),
		Signaler:       f.createSignaler(),
		WatcherFactory: NewWatcherFactory(flt),
		Filter:         flt,
	}, nil
}

// CreateWithOverrides creates dependencies with specific overrides.
// This is useful for testing or custom configurations.
func (f *DependencyFactory) CreateWithOverrides(overrides Dependencies) (Dependencies, error) {
	deps, err := f.CreateDefaults()
	if err != nil {
		return Dependencies{}, err
	}

	// Apply overrides (non-nil values replace defaults)
	if overrides.Transformer != nil {
		deps.Transformer = overrides.Transformer
	}
	if overrides.Recorder != nil {
		deps.Recorder = overrides.Recorder
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Signaler != nil {
		deps.Signaler = overrides.Signaler
	}
	if overrides.Filter != nil {
		deps.Filter = overrides.Filter
		deps.WatcherFactory = NewWatcherFactory(overrides.Filter)
	}
	if overrides.WatcherFactory != nil {
		deps.WatcherFactory = overrides.WatcherFactory
	}

	return deps, nil
}

// NewWatcherFactory returns a WatcherFactory backed by fsnotify that does not
// descend into directories excluded by flt
func NewWatcherFactory(flt *filter.Filter) WatcherFactory {
	return func(pkg *types.Package, log logger.Logger) (EventSource, error) {
		w, err := watcher.New(pkg.SourceDir, log, watcher.WithExclude(func(dir string) bool {
			rel, err := filepath.Rel(pkg.SourceDir, dir)
			if err != nil {
				return false
			}
			return flt.ExcludedDir(filepath.ToSlash(rel))
		}))
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// Individual factory methods for each dependency

func (f *DependencyFactory) createFilter() (*filter.Filter, error) {
	patterns := append(append([]string(nil), filter.DefaultExclusions...), f.config.Exclude...)
	flt, err := filter.New(patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return flt, nil
}

func (f *DependencyFactory) createTransformer() (transform.Transformer, error) {
	var opts []transform.EsbuildOption
	if f.config.NodeVersion != "" {
		opts = append(opts, transform.WithNodeVersion(f.config.NodeVersion))
	}
	if f.config.BrowserTarget != "" {
		opts = append(opts, transform.WithBrowserTarget(f.config.BrowserTarget))
	}

	t, err := transform.NewEsbuild(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return t, nil
}

func (f *DependencyFactory) createRecorder() metrics.Recorder {
	if f.registry == nil {
		return metrics.NoopRecorder{}
	}
	return metrics.NewPrometheusRecorder(f.registry)
}

func (f *DependencyFactory) createNotifier() Notifier {
	if !f.config.Notify {
		return noopNotifier{}
	}
	return notifier.New(notifier.Config{Enabled: true}, f.logger)
}

func (f *DependencyFactory) createSignaler() completion.Signaler {
	s, err := completion.ParentSignaler()
	if err != nil {
		f.logger.Warn("Parent process channel unusable, completion will not be signalled",
			logger.WithField("error", err.Error()))
		return completion.NoopSignaler{}
	}
	return s
}
