package flowable

import (
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/internal/drain"
	"github.com/jakewins/rsflow/pkg/internal/subscriber"
	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/pkg/errors"
)

// TakeLast returns a Publisher that, once source completes, emits only
// the last n values source produced, followed by OnComplete. n must be
// >= 0.
//
// Grounded on rsc.publisher.PublisherTakeLast in original_source, which
// dispatches to three different subscriber shapes depending on n: discard
// everything (n==0), the deferred-scalar helper (n==1), and a ring buffer
// drained through the post-complete protocol (n>=2).
func TakeLast(source reactive.Publisher, n int) (reactive.Publisher, error) {
	if n < 0 {
		return nil, errors.Errorf("n must be >= 0 but it was %d", n)
	}

	return reactive.NewPublisher(func(s reactive.Subscriber) {
		switch {
		case n == 0:
			source.Subscribe(&takeLastZeroSubscriber{downstream: s})
		case n == 1:
			source.Subscribe(&takeLastOneSubscriber{downstream: s, scalar: subscriber.NewDeferScalar(s)})
		default:
			source.Subscribe(&takeLastManySubscriber{downstream: s, n: n})
		}
	}), nil
}

// --- n == 0: discard everything, forward only the terminal signal ---

type takeLastZeroSubscriber struct {
	downstream reactive.Subscriber
	upstream   reactive.Subscription
}

func (t *takeLastZeroSubscriber) OnSubscribe(s reactive.Subscription) {
	if ok, _ := subscription.SetOnce(&t.upstream, s); !ok {
		return
	}
	t.downstream.OnSubscribe(t)
	s.Request(subscription.Unbounded)
}
func (t *takeLastZeroSubscriber) OnNext(interface{})   {}
func (t *takeLastZeroSubscriber) OnError(err error)    { t.downstream.OnError(err) }
func (t *takeLastZeroSubscriber) OnComplete()          { t.downstream.OnComplete() }
func (t *takeLastZeroSubscriber) Request(n int64)      { t.upstream.Request(n) }
func (t *takeLastZeroSubscriber) Cancel()              { t.upstream.Cancel() }

// --- n == 1: reuse the deferred-scalar helper ---

type takeLastOneSubscriber struct {
	downstream reactive.Subscriber
	upstream   reactive.Subscription
	scalar     *subscriber.DeferScalar

	value    interface{}
	hasValue bool
}

func (t *takeLastOneSubscriber) OnSubscribe(s reactive.Subscription) {
	if ok, _ := subscription.SetOnce(&t.upstream, s); !ok {
		return
	}
	t.downstream.OnSubscribe(t)
	s.Request(subscription.Unbounded)
}

// OnNext overwrites the plain value field directly — not through the
// scalar's Set, which would try to emit the moment downstream demand is
// already present. Only the final value, written once source completes,
// is allowed to reach the scalar.
func (t *takeLastOneSubscriber) OnNext(v interface{}) {
	t.value = v
	t.hasValue = true
}
func (t *takeLastOneSubscriber) OnError(err error) { t.downstream.OnError(err) }
func (t *takeLastOneSubscriber) OnComplete() {
	if t.hasValue {
		t.scalar.Set(t.value)
	} else {
		t.downstream.OnComplete()
	}
}

// Request and Cancel are the Subscription handed to the downstream in
// place of the bare scalar, so that cancellation propagates to the
// upstream the same way it does for the n==0 and n>=2 variants.
func (t *takeLastOneSubscriber) Request(n int64) { t.scalar.Request(n) }
func (t *takeLastOneSubscriber) Cancel() {
	t.scalar.Cancel()
	t.upstream.Cancel()
}

// --- n >= 2: ring-buffered last-N with post-complete drain ---

type takeLastManySubscriber struct {
	downstream reactive.Subscriber
	n          int
	upstream   reactive.Subscription

	cancelled atomic.Bool
	buffer    ringBuffer
	state     drain.State
}

func (t *takeLastManySubscriber) OnSubscribe(s reactive.Subscription) {
	if ok, _ := subscription.SetOnce(&t.upstream, s); !ok {
		return
	}
	t.downstream.OnSubscribe(t)
	s.Request(subscription.Unbounded)
}

func (t *takeLastManySubscriber) OnNext(v interface{}) {
	t.buffer.push(v, t.n)
}

func (t *takeLastManySubscriber) OnError(err error) {
	t.downstream.OnError(err)
}

func (t *takeLastManySubscriber) OnComplete() {
	drain.PostComplete(&t.state, t.downstream, &t.buffer, &t.cancelled)
}

func (t *takeLastManySubscriber) Request(n int64) {
	if !subscription.Validate(n, t.downstream) {
		return
	}
	drain.PostCompleteRequest(&t.state, n, t.downstream, &t.buffer, &t.cancelled)
}

func (t *takeLastManySubscriber) Cancel() {
	t.cancelled.Store(true)
	t.upstream.Cancel()
}

// ringBuffer is a FIFO capped at a fixed capacity, evicting the oldest
// entry once full. It implements drain.Buffer.
type ringBuffer struct {
	items []interface{}
}

func (b *ringBuffer) push(v interface{}, capacity int) {
	if len(b.items) == capacity {
		b.items = b.items[1:]
	}
	b.items = append(b.items, v)
}

func (b *ringBuffer) Poll() (interface{}, bool) {
	if len(b.items) == 0 {
		return nil, false
	}
	v := b.items[0]
	b.items = b.items[1:]
	return v, true
}

func (b *ringBuffer) IsEmpty() bool { return len(b.items) == 0 }
