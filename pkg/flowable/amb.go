package flowable

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/internal/subscriber"
	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/pkg/errors"
)

// ErrNilSource is reported when a source passed to Amb, or produced by an
// AmbIterable iterator, is nil.
var ErrNilSource = errors.New("the source publisher is nil")

// Amb subscribes to the sources one after another, in order, and relays
// only the signals of whichever source responds first — with any signal,
// including OnError or OnComplete with no prior OnNext. Sources not yet
// subscribed when a winner is decided are never subscribed; every other
// source is cancelled the moment a winner is decided.
//
// Grounded on rsc.publisher.PublisherAmb in original_source.
func Amb(sources ...reactive.Publisher) reactive.Publisher {
	return AmbIterable(func(yield func(reactive.Publisher) bool) {
		for _, p := range sources {
			if !yield(p) {
				return
			}
		}
	})
}

// AmbIterable is Amb generalized over a push-style iterator. The iterator
// is run to the end, once, at subscribe time, and the sources it yields
// are collected before any of them is subscribed.
//
// The iterator is invoked with a yield callback; returning false from
// yield (never done here) would stop iteration early. The iterator has no
// way to report a failure: a panic raised inside it is not recovered and
// propagates out of Subscribe. Only a nil source it yields is reported
// downstream, as ErrNilSource. Supplied mainly so callers building
// sources lazily don't have to materialize a slice.
func AmbIterable(iterate func(yield func(reactive.Publisher) bool)) reactive.Publisher {
	return reactive.NewPublisher(func(s reactive.Subscriber) {
		var sources []reactive.Publisher
		iterate(func(p reactive.Publisher) bool {
			sources = append(sources, p)
			return true
		})

		n := len(sources)
		if n == 0 {
			subscription.Complete(s)
			return
		}
		if n == 1 {
			if sources[0] == nil {
				subscription.Error(s, fmt.Errorf("%w (source index 0)", ErrNilSource))
				return
			}
			sources[0].Subscribe(s)
			return
		}

		coordinator := newAmbCoordinator(n)
		coordinator.subscribe(sources, s)
	})
}

// ambUndecided is the coordinator's wip sentinel meaning no candidate has
// won yet; any non-negative value is the winning candidate's index.
const ambUndecided = math.MinInt32

// ambFailed marks the race as lost: the coordinator was cancelled, or a
// nil source was encountered, before any candidate could win.
const ambFailed = -1

type ambCoordinator struct {
	downstream  reactive.Subscriber
	subscribers []*ambSubscriber

	cancelled atomic.Bool
	winner    atomic.Int32 // ambUndecided, ambFailed, or the winning index
}

func newAmbCoordinator(n int) *ambCoordinator {
	c := &ambCoordinator{subscribers: make([]*ambSubscriber, n)}
	c.winner.Store(ambUndecided)
	return c
}

func (c *ambCoordinator) subscribe(sources []reactive.Publisher, actual reactive.Subscriber) {
	c.downstream = actual
	for i := range c.subscribers {
		c.subscribers[i] = &ambSubscriber{parent: c, index: i}
	}

	actual.OnSubscribe(c)

	for i, p := range sources {
		if c.cancelled.Load() || c.winner.Load() != ambUndecided {
			return
		}
		if p == nil {
			if c.winner.CompareAndSwap(ambUndecided, ambFailed) {
				actual.OnError(fmt.Errorf("%w (source index %d)", ErrNilSource, i))
			}
			return
		}
		p.Subscribe(c.subscribers[i])
	}
}

// Request implements reactive.Subscription. Before a winner is decided,
// demand fans out to every candidate; after, only the winner still
// matters.
func (c *ambCoordinator) Request(n int64) {
	if !subscription.Validate(n, c.downstream) {
		return
	}
	w := c.winner.Load()
	if w >= 0 {
		c.subscribers[w].Request(n)
		return
	}
	for _, sub := range c.subscribers {
		sub.Request(n)
	}
}

// Cancel implements reactive.Subscription.
func (c *ambCoordinator) Cancel() {
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	// No candidate may win once the coordinator is cancelled.
	c.winner.CompareAndSwap(ambUndecided, ambFailed)
	w := c.winner.Load()
	if w >= 0 {
		c.subscribers[w].Cancel()
		return
	}
	for _, sub := range c.subscribers {
		sub.Cancel()
	}
}

// tryWin is the race's single decision point: the first candidate to call
// this with a fresh index installs itself as the winner and cancels every
// other candidate. Only one caller, across any number of concurrently
// racing goroutines, ever observes true for a given coordinator.
func (c *ambCoordinator) tryWin(index int) bool {
	if !c.winner.CompareAndSwap(ambUndecided, int32(index)) {
		return false
	}
	for i, sub := range c.subscribers {
		if i != index {
			sub.Cancel()
		}
	}
	return true
}

// ambSubscriber is one racing candidate. It embeds subscriber.Deferred so
// it can be handed to its source's OnSubscribe before the race is
// settled, buffering demand until either it wins (and Deferred.Set was
// already driven by OnSubscribe) or loses (and gets cancelled).
type ambSubscriber struct {
	subscriber.Deferred
	parent *ambCoordinator
	index  int
	won    bool
}

func (a *ambSubscriber) OnSubscribe(s reactive.Subscription) {
	a.Deferred.Set(s)
}

func (a *ambSubscriber) OnNext(v interface{}) {
	if a.won {
		a.parent.downstream.OnNext(v)
		return
	}
	if a.parent.tryWin(a.index) {
		a.won = true
		a.parent.downstream.OnNext(v)
	}
}

func (a *ambSubscriber) OnError(err error) {
	if a.won {
		a.parent.downstream.OnError(err)
		return
	}
	if a.parent.tryWin(a.index) {
		a.won = true
		a.parent.downstream.OnError(err)
	}
}

func (a *ambSubscriber) OnComplete() {
	if a.won {
		a.parent.downstream.OnComplete()
		return
	}
	if a.parent.tryWin(a.index) {
		a.won = true
		a.parent.downstream.OnComplete()
	}
}
