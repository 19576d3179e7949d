package flowable

import (
	"math"
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/pkg/errors"
)

// ErrInvalidRange is returned by Range when the requested range would
// overflow a 32-bit int.
var ErrInvalidRange = errors.New("start + count - 1 must not exceed math.MaxInt32")

// Range returns a Publisher emitting the count consecutive integers
// starting at start, as int values. count must be non-negative; count ==
// 0 yields an immediately-completing, empty Publisher.
//
// Grounded on reactivestreams.commons.publisher.PublisherRange in
// original_source: a single subscription with a fast path for unbounded
// demand and a slow, re-entrancy-guarded drain loop for bounded demand.
func Range(start, count int) (reactive.Publisher, error) {
	if count < 0 {
		return nil, errors.Errorf("count must be >= 0 but it was %d", count)
	}
	end := int64(start) + int64(count)
	if end-1 > math.MaxInt32 {
		return nil, ErrInvalidRange
	}

	return reactive.NewPublisher(func(s reactive.Subscriber) {
		if count == 0 {
			subscription.Complete(s)
			return
		}
		s.OnSubscribe(&rangeSubscription{
			downstream: s,
			index:      int64(start),
			end:        end,
		})
	}), nil
}

type rangeSubscription struct {
	downstream reactive.Subscriber
	end        int64

	cancelled atomic.Bool
	index     int64 // single-writer: only the active drain owns this
	requested atomic.Int64
}

func (r *rangeSubscription) Request(n int64) {
	if !subscription.Validate(n, r.downstream) {
		return
	}
	if bumpFromZero(&r.requested, n) {
		if n == subscription.Unbounded {
			r.fastPath()
		} else {
			r.slowPath(n)
		}
	}
}

// bumpFromZero adds n to *counter and reports whether the value observed
// immediately before the add was zero — i.e. whether the caller is the
// one that must own the drain loop. This is the drain-loop idiom: the
// first Request to find demand at zero owns draining; everyone else just
// adds and returns.
func bumpFromZero(counter *atomic.Int64, n int64) bool {
	for {
		cur := counter.Load()
		next := subscription.AddCap(cur, n)
		if counter.CompareAndSwap(cur, next) {
			return cur == 0
		}
	}
}

func (r *rangeSubscription) Cancel() {
	r.cancelled.Store(true)
}

func (r *rangeSubscription) fastPath() {
	end := r.end
	a := r.downstream

	for i := r.index; i != end; i++ {
		if r.cancelled.Load() {
			return
		}
		a.OnNext(int(i))
	}

	if r.cancelled.Load() {
		return
	}
	a.OnComplete()
}

func (r *rangeSubscription) slowPath(n int64) {
	a := r.downstream
	end := r.end
	i := r.index
	var emitted int64

	for {
		if r.cancelled.Load() {
			return
		}

		for emitted != n && i != end {
			a.OnNext(int(i))
			if r.cancelled.Load() {
				return
			}
			emitted++
			i++
		}

		if r.cancelled.Load() {
			return
		}

		if i == end {
			r.index = i
			a.OnComplete()
			return
		}

		n = r.requested.Load()
		if n == emitted {
			r.index = i
			n = r.requested.Add(-emitted)
			if n == 0 {
				return
			}
			emitted = 0
		}
	}
}
