// Package notifier sends desktop notifications for build milestones
package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/lambGirl/umi-tools/pkg/logger"
)

const appTitle = "umi-tools"

// failureBurst caps transform-failure notifications per window so a broken
// save in watch mode does not flood the desktop.
const (
	failureBurst  = 3
	failureWindow = 10 * time.Second
)

// SendFunc delivers one notification
type SendFunc func(title, message string) error

// Config represents notification configuration
type Config struct {
	Enabled bool
}

// Option configures a BuildNotifier
type Option func(*BuildNotifier)

// WithSendFunc replaces the desktop delivery, mostly for tests
func WithSendFunc(send SendFunc) Option {
	return func(n *BuildNotifier) {
		n.send = send
	}
}

// BuildNotifier handles build notifications
type BuildNotifier struct {
	enabled bool
	send    SendFunc
	logger  logger.Logger

	mu          sync.Mutex
	windowStart time.Time
	failures    int
	now         func() time.Time
}

// New creates a new build notifier
func New(config Config, log logger.Logger, opts ...Option) *BuildNotifier {
	n := &BuildNotifier{
		enabled: config.Enabled,
		logger:  log,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyBuildComplete notifies that every package finished its initial build
func (n *BuildNotifier) NotifyBuildComplete(packages int, duration time.Duration) {
	if !n.enabled {
		return
	}

	noun := "packages"
	if packages == 1 {
		noun = "package"
	}
	n.sendNotification("✅ "+appTitle, fmt.Sprintf("Built %d %s in %s", packages, noun, formatDuration(duration)))
}

// NotifyTransformFailure notifies that a file could not be transformed
func (n *BuildNotifier) NotifyTransformFailure(path string, err error) {
	if !n.enabled || !n.allowFailure() {
		return
	}
	n.sendNotification("❌ "+appTitle, fmt.Sprintf("%s: %v", path, err))
}

func (n *BuildNotifier) allowFailure() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if now.Sub(n.windowStart) > failureWindow {
		n.windowStart = now
		n.failures = 0
	}
	n.failures++
	return n.failures <= failureBurst
}

func (n *BuildNotifier) sendNotification(title, message string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
