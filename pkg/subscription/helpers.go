// Package subscription provides the small set of pure helpers every
// operator subscription in this module is built from: demand validation,
// additive saturation, terminal sentinels, and early-error emission.
//
// Grounded on SubscriptionHelper / BackpressureHelper as used throughout
// the original_source Java publishers (PublisherRange, PublisherAmb,
// PublisherTakeLast, PublisherUsing all call into their equivalents).
package subscription

import (
	"fmt"
	"math"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/pkg/errors"
)

// Unbounded is the demand sentinel meaning "effectively unlimited".
const Unbounded int64 = math.MaxInt64

// ErrInvalidRequest is signaled downstream when Request is called with a
// non-positive n.
var ErrInvalidRequest = errors.New("n > 0 required")

// ErrDuplicateSubscription is signaled when an upstream calls OnSubscribe
// more than once on the same adapter.
var ErrDuplicateSubscription = errors.New("subscription already set")

// Validate reports whether n is a legal request amount. If it isn't, it
// signals ErrInvalidRequest downstream and returns false.
func Validate(n int64, s reactive.Subscriber) bool {
	if n <= 0 {
		s.OnError(fmt.Errorf("%w: n > 0 required but it was %d", ErrInvalidRequest, n))
		return false
	}
	return true
}

// SetOnce assigns next into *current the first time it is called. If
// *current is already set, next is cancelled instead and SetOnce returns
// false, reporting a protocol violation to the caller via the returned
// error (the caller is expected to deliver it as appropriate for its own
// adapter, since at this point there may be no single agreed-on
// downstream to report it to).
func SetOnce(current *reactive.Subscription, next reactive.Subscription) (bool, error) {
	if *current != nil {
		next.Cancel()
		return false, ErrDuplicateSubscription
	}
	*current = next
	return true, nil
}

// Error delivers OnSubscribe(noop) followed by OnError(cause) to s. Used
// whenever a publisher must report a construction-time failure before any
// real subscription exists.
func Error(s reactive.Subscriber, cause error) {
	s.OnSubscribe(noopSubscription{})
	s.OnError(cause)
}

// Complete delivers OnSubscribe(noop) followed by OnComplete() to s. Used
// for degenerate empty sequences (e.g. Range(n, 0), Amb with zero
// sources).
func Complete(s reactive.Subscriber) {
	s.OnSubscribe(noopSubscription{})
	s.OnComplete()
}

// AddCap adds n to current, saturating at Unbounded rather than
// overflowing. Both current and n are assumed non-negative.
func AddCap(current, n int64) int64 {
	if current == Unbounded {
		return Unbounded
	}
	r := current + n
	if r < 0 || r == Unbounded {
		// overflowed, or landed exactly on the sentinel by chance
		return Unbounded
	}
	return r
}

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}
