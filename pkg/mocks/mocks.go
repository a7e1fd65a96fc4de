package mocks

// Hand-written test doubles for the collaborators of the build engine.
// MockTransformer is generated by mockgen.

import (
	"sync"
	"time"

	"github.com/lambGirl/umi-tools/internal/watcher"
)

// MockNotifier records build notifications
type MockNotifier struct {
	mu        sync.Mutex
	completes []int
	failures  []string
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyBuildComplete records the package count
func (m *MockNotifier) NotifyBuildComplete(packages int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completes = append(m.completes, packages)
}

// NotifyTransformFailure records the failed path
func (m *MockNotifier) NotifyTransformFailure(path string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, path)
}

// Completions returns the package counts of every completion notification
func (m *MockNotifier) Completions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.completes...)
}

// Failures returns the paths of every failure notification
func (m *MockNotifier) Failures() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.failures...)
}

// MockRecorder counts metric calls
type MockRecorder struct {
	mu       sync.Mutex
	files    map[string]int
	builds   map[string]int
	rebuilds map[string]int
	pending  []int
}

// NewMockRecorder creates a new mock recorder
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		files:    make(map[string]int),
		builds:   make(map[string]int),
		rebuilds: make(map[string]int),
	}
}

// IncFile counts by "package/target/outcome"
func (m *MockRecorder) IncFile(pkg, target, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[pkg+"/"+target+"/"+outcome]++
}

// ObservePackageBuild counts package builds
func (m *MockRecorder) ObservePackageBuild(pkg string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds[pkg]++
}

// IncWatchRebuild counts watch rebuilds
func (m *MockRecorder) IncWatchRebuild(pkg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds[pkg]++
}

// SetPendingPackages records every pending count in order
func (m *MockRecorder) SetPendingPackages(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, n)
}

// Files returns the count for pkg, target and outcome
func (m *MockRecorder) Files(pkg, target, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[pkg+"/"+target+"/"+outcome]
}

// Builds returns the number of observed builds of pkg
func (m *MockRecorder) Builds(pkg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds[pkg]
}

// Rebuilds returns the number of watch rebuilds of pkg
func (m *MockRecorder) Rebuilds(pkg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuilds[pkg]
}

// Pending returns the recorded pending counts
func (m *MockRecorder) Pending() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.pending...)
}

// MockSignaler records completion messages
type MockSignaler struct {
	mu       sync.Mutex
	messages []string
	err      error
}

// NewMockSignaler creates a new mock signaler
func NewMockSignaler() *MockSignaler {
	return &MockSignaler{}
}

// Signal records message and returns the configured error
func (m *MockSignaler) Signal(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return m.err
}

// SetError makes Signal fail
func (m *MockSignaler) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Messages returns every signalled message
func (m *MockSignaler) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// MockEventSource is a watch subscription fed by the test
type MockEventSource struct {
	events chan watcher.Event
	errors chan error
	mu     sync.Mutex
	closed bool
}

// NewMockEventSource creates a mock event source with room for a few
// pending events
func NewMockEventSource() *MockEventSource {
	return &MockEventSource{
		events: make(chan watcher.Event, 16),
		errors: make(chan error, 4),
	}
}

// Events returns the event channel
func (m *MockEventSource) Events() <-chan watcher.Event {
	return m.events
}

// Errors returns the error channel
func (m *MockEventSource) Errors() <-chan error {
	return m.errors
}

// Close marks the source closed. The channels stay open.
func (m *MockEventSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockEventSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Trigger delivers a file change event
func (m *MockEventSource) Trigger(path string, op watcher.Op) {
	m.events <- watcher.Event{Path: path, Op: op}
}

// TriggerError delivers a subscription error
func (m *MockEventSource) TriggerError(err error) {
	m.errors <- err
}
