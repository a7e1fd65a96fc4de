package engine

import (
	"time"

	"github.com/lambGirl/umi-tools/internal/watcher"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/types"
)

// EventSource is an armed watch subscription for one package.
// KEEP: fsnotify in production, scripted sources in tests.
type EventSource interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
	Close() error
}

// WatcherFactory arms an EventSource on a package's source directory
type WatcherFactory func(pkg *types.Package, log logger.Logger) (EventSource, error)

// Notifier reports build milestones to the user.
// KEEP: desktop notifications or nothing.
type Notifier interface {
	NotifyBuildComplete(packages int, duration time.Duration)
	NotifyTransformFailure(path string, err error)
}

type noopNotifier struct{}

func (noopNotifier) NotifyBuildComplete(int, time.Duration) {}
func (noopNotifier) NotifyTransformFailure(string, error)   {}
