// Package completion tracks when every package's initial build has drained
// and notifies the supervising process once.
package completion

import (
	"sync"
	"sync/atomic"
)

// CompletionMessage is sent to the parent process when all initial builds are done
const CompletionMessage = "BUILD_COMPLETE"

// Tracker counts packages whose initial build has not drained yet. The
// signal fires exactly once, when the count reaches zero.
type Tracker struct {
	total    int64
	pending  atomic.Int64
	once     sync.Once
	done     chan struct{}
	signaler Signaler
	err      error
}

// NewTracker creates a tracker for total packages. With no packages the
// signal fires immediately.
func NewTracker(total int, signaler Signaler) *Tracker {
	if signaler == nil {
		signaler = NoopSignaler{}
	}
	t := &Tracker{
		total:    int64(total),
		done:     make(chan struct{}),
		signaler: signaler,
	}
	t.pending.Store(int64(total))
	if total <= 0 {
		t.fire()
	}
	return t
}

// Done records that one package's initial build drained. It reports whether
// this call fired the completion signal. Calls past zero are ignored.
func (t *Tracker) Done() bool {
	for {
		n := t.pending.Load()
		if n <= 0 {
			return false
		}
		if t.pending.CompareAndSwap(n, n-1) {
			if n-1 == 0 {
				t.fire()
				return true
			}
			return false
		}
	}
}

// Pending returns the number of packages still building
func (t *Tracker) Pending() int {
	return int(t.pending.Load())
}

// Total returns the number of packages the tracker was created with
func (t *Tracker) Total() int {
	return int(t.total)
}

// Completed is closed once the signal has fired
func (t *Tracker) Completed() <-chan struct{} {
	return t.done
}

// Err returns the error of the signal delivery, if any. Only meaningful
// after Completed is closed.
func (t *Tracker) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Tracker) fire() {
	t.once.Do(func() {
		t.err = t.signaler.Signal(CompletionMessage)
		close(t.done)
	})
}
