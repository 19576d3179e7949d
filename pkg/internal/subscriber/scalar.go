package subscriber

import (
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/reactive"
)

// Scalar states, mirroring SDS_NO_REQUEST_NO_VALUE etc. in
// SubscriberDeferScalar.java.
const (
	noReqNoVal int32 = iota
	noReqHasVal
	hasReqNoVal
	hasReqHasVal
)

// DeferScalar is a Subscription that emits at most one value, once both a
// value (via Set) and downstream demand (via Request) are present,
// whichever arrives last. Used directly by TakeLast(1), and reusable
// anywhere an operator needs to produce "at most one value once demand
// arrives".
type DeferScalar struct {
	downstream reactive.Subscriber
	state      atomic.Int32
	value      interface{}
}

// NewDeferScalar returns a DeferScalar that will emit onto downstream.
func NewDeferScalar(downstream reactive.Subscriber) *DeferScalar {
	return &DeferScalar{downstream: downstream}
}

// Request implements reactive.Subscription. n must be >= 1; callers are
// expected to have already run it through subscription.Validate.
func (d *DeferScalar) Request(n int64) {
	if n <= 0 {
		return
	}
	for {
		s := d.state.Load()
		switch s {
		case hasReqNoVal, hasReqHasVal:
			return
		case noReqHasVal:
			if d.state.CompareAndSwap(noReqHasVal, hasReqHasVal) {
				d.downstream.OnNext(d.value)
				d.downstream.OnComplete()
			}
			return
		default: // noReqNoVal
			if d.state.CompareAndSwap(noReqNoVal, hasReqNoVal) {
				return
			}
		}
	}
}

// Cancel implements reactive.Subscription, inhibiting any future
// emission.
func (d *DeferScalar) Cancel() {
	d.state.Store(hasReqHasVal)
}

// IsCancelled reports whether the scalar has reached its terminal state.
// Having emitted and having been cancelled collapse to that same state,
// so this also returns true after an emission, matching the Java source's
// own isCancelled().
func (d *DeferScalar) IsCancelled() bool {
	return d.state.Load() == hasReqHasVal
}

// Set stores v and, if downstream demand is already present, emits
// OnNext(v) followed by OnComplete(). v must be non-nil. Only the first
// successful Set (or the first Request that finds a stored value) causes
// an emission; everything afterwards is a no-op.
func (d *DeferScalar) Set(v interface{}) {
	if v == nil {
		panic("subscriber.DeferScalar.Set: value must not be nil")
	}
	for {
		s := d.state.Load()
		switch s {
		case noReqHasVal, hasReqHasVal:
			return
		case hasReqNoVal:
			d.value = v
			if d.state.CompareAndSwap(hasReqNoVal, hasReqHasVal) {
				d.downstream.OnNext(v)
				d.downstream.OnComplete()
			}
			return
		default: // noReqNoVal
			d.value = v
			if d.state.CompareAndSwap(noReqNoVal, noReqHasVal) {
				return
			}
		}
	}
}
