// Package subscriber holds the two reusable per-subscription state
// machines that sit beneath pkg/flowable's operators: a deferred
// subscription base (for subscribers whose upstream isn't known yet, used
// by Amb) and a deferred-scalar helper (for at-most-one emission, used by
// TakeLast(1)).
//
// Grounded on rsc.subscriber.DeferredSubscriptionSubscriber and
// reactivestreams.commons.internal.subscriber.SubscriberDeferScalar in
// original_source.
package subscriber

import (
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
)

// Deferred is the upstream-facing half of a subscriber whose real
// Subscription isn't known at construction time. Embed it in a concrete
// subscriber (see pkg/flowable's ambSubscriber) to get Request/Cancel
// plumbing that replays accumulated demand once Set is called, and that
// cancels a late-arriving Subscription if Cancel already fired.
//
// Deferred itself implements reactive.Subscription: hand it to the
// downstream via OnSubscribe so Request/Cancel calls land here first.
type Deferred struct {
	requested atomic.Int64
	cancelled atomic.Bool
	actual    atomic.Pointer[reactive.Subscription]
}

// Set assigns the real upstream subscription, at most once. If this
// Deferred was already cancelled, or already had an upstream assigned, s
// is cancelled instead and Set returns false. Any demand accumulated
// through Request before Set succeeds is replayed onto s immediately.
func (d *Deferred) Set(s reactive.Subscription) bool {
	if d.cancelled.Load() {
		s.Cancel()
		return false
	}
	if !d.actual.CompareAndSwap(nil, &s) {
		s.Cancel()
		return false
	}
	// A Cancel that arrived concurrently may have missed our not-yet-set
	// actual pointer; re-check so we never leave a live subscription
	// running past a cancellation that raced us.
	if d.cancelled.Load() {
		s.Cancel()
		return true
	}
	if r := d.requested.Swap(0); r > 0 {
		s.Request(r)
	}
	return true
}

// Request implements reactive.Subscription. Before Set, demand
// accumulates (saturating); after, it forwards directly to the upstream.
func (d *Deferred) Request(n int64) {
	if p := d.actual.Load(); p != nil {
		(*p).Request(n)
		return
	}
	for {
		cur := d.requested.Load()
		next := subscription.AddCap(cur, n)
		if d.requested.CompareAndSwap(cur, next) {
			break
		}
	}
	// The upstream may have been Set concurrently with the loop above; if
	// so, drain whatever we just accumulated onto it rather than leaving
	// it stranded until some later Request call.
	if p := d.actual.Load(); p != nil {
		if r := d.requested.Swap(0); r > 0 {
			(*p).Request(r)
		}
	}
}

// Cancel implements reactive.Subscription. Idempotent; cancels the
// upstream if one is already set, or marks this Deferred so that a
// subsequent Set cancels the provided subscription on arrival.
func (d *Deferred) Cancel() {
	if !d.cancelled.CompareAndSwap(false, true) {
		return
	}
	if p := d.actual.Load(); p != nil {
		(*p).Cancel()
	}
}

// IsCancelled reports whether Cancel has been observed.
func (d *Deferred) IsCancelled() bool {
	return d.cancelled.Load()
}
