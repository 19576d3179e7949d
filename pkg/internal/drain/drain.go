// Package drain implements the post-complete drain protocol shared by
// buffered operators that switch, on upstream completion, from "push
// whatever arrives" to "replay a captured buffer under downstream
// demand". TakeLast(n>=2) is this module's only user.
//
// Grounded on DrainHelper.postCompleteRequest/postComplete as called from
// rsc.publisher.PublisherTakeLast.PublisherTakeLastManySubscriber in
// original_source. The Java source packs a completion flag into the high
// bit of an AtomicLongFieldUpdater-backed counter and drains under a
// work-in-progress counter so concurrent Request calls during a drain
// serialize onto a single drainer; this is the same scheme built on
// sync/atomic's typed wrappers.
package drain

import (
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/reactive"
)

// completedFlag occupies the sign bit of the demand counter. Every demand
// value handled here is non-negative and fits comfortably below it.
const completedFlag = int64(-1 << 63)

const max63 = int64(1<<63 - 1)

// Buffer is the minimal surface a post-complete drain needs from a
// buffered operator's backing store.
type Buffer interface {
	// Poll removes and returns the oldest buffered value. ok is false if
	// the buffer is empty.
	Poll() (v interface{}, ok bool)
	// IsEmpty reports whether the buffer currently holds no values.
	IsEmpty() bool
}

// State holds the post-complete demand counter (low 63 bits: outstanding
// demand, sign bit: upstream has completed) and the work-in-progress
// counter that gives exactly one goroutine ownership of the drain loop at
// a time. Zero value is ready to use.
type State struct {
	demand atomic.Int64
	wip    atomic.Int64
}

// PostCompleteRequest folds n into the outstanding demand. If the
// upstream has already completed, it also runs the drain; otherwise the
// demand is simply recorded for whenever PostComplete fires.
func PostCompleteRequest(s *State, n int64, downstream reactive.Subscriber, buf Buffer, cancelled *atomic.Bool) {
	var triggersDrain bool
	for {
		r := s.demand.Load()
		completed := r < 0
		count := r &^ completedFlag
		next := addCap63(count, n)
		if completed {
			next |= completedFlag
		}
		if s.demand.CompareAndSwap(r, next) {
			triggersDrain = completed
			break
		}
	}
	if triggersDrain {
		drain(s, downstream, buf, cancelled)
	}
}

// PostComplete marks the upstream as completed and runs the drain. Safe
// to call concurrently with PostCompleteRequest; exactly one of the two
// becomes the drainer for any given round, and the drain's own
// work-in-progress loop picks up anything racing in after that.
func PostComplete(s *State, downstream reactive.Subscriber, buf Buffer, cancelled *atomic.Bool) {
	for {
		r := s.demand.Load()
		next := r | completedFlag
		if s.demand.CompareAndSwap(r, next) {
			break
		}
	}
	drain(s, downstream, buf, cancelled)
}

func drain(s *State, downstream reactive.Subscriber, buf Buffer, cancelled *atomic.Bool) {
	if s.wip.Add(1) != 1 {
		// Someone else already owns the drain loop; our demand/completion
		// update is visible to them on their next pass.
		return
	}

	missed := int64(1)
	for {
		avail := s.demand.Load() &^ completedFlag
		var emitted int64
		for emitted != avail {
			if cancelled.Load() {
				return
			}
			if buf.IsEmpty() {
				break
			}
			v, _ := buf.Poll()
			downstream.OnNext(v)
			emitted++
		}

		if cancelled.Load() {
			return
		}

		if buf.IsEmpty() {
			downstream.OnComplete()
			return
		}

		if emitted != 0 {
			for {
				r := s.demand.Load()
				count := r &^ completedFlag
				next := count - emitted
				if r < 0 {
					next |= completedFlag
				}
				if s.demand.CompareAndSwap(r, next) {
					break
				}
			}
		}

		missed = s.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

func addCap63(cur, n int64) int64 {
	if cur >= max63 {
		return max63
	}
	r := cur + n
	if r < 0 || r > max63 {
		return max63
	}
	return r
}
