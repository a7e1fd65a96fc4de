package metrics

import "time"

// Outcome labels for transform results.
const (
	OutcomeTransformed = "transformed"
	OutcomeCopied      = "copied"
	OutcomeFailed      = "failed"
	OutcomeUnchanged   = "unchanged"
)

// Recorder defines observability hooks for the build pipeline. Implementations
// must be safe for concurrent use from package builders and watch handlers.
type Recorder interface {
	IncFile(pkg, target, outcome string)
	ObservePackageBuild(pkg string, d time.Duration)
	IncWatchRebuild(pkg string)
	SetPendingPackages(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFile(string, string, string)            {}
func (NoopRecorder) ObservePackageBuild(string, time.Duration) {}
func (NoopRecorder) IncWatchRebuild(string)                    {}
func (NoopRecorder) SetPendingPackages(int)                    {}
