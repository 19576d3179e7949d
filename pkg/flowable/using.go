package flowable

import (
	"fmt"
	"sync/atomic"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "flowable")

// ErrNilPublisher is reported when a Using factory returns a nil
// Publisher.
var ErrNilPublisher = errors.New("the source factory returned a nil publisher")

// CleanupError wraps a resource-cleanup failure. If the cleanup ran while
// another error was already in flight (the upstream error in eager mode,
// or the factory error during construction), that error is preserved as
// Suppressed rather than lost.
type CleanupError struct {
	Cause      error
	Suppressed error
}

func (e *CleanupError) Error() string {
	if e.Suppressed != nil {
		return fmt.Sprintf("%s (suppressed: %s)", e.Cause, e.Suppressed)
	}
	return e.Cause.Error()
}

// Unwrap exposes the cleanup failure itself to errors.Is/As.
func (e *CleanupError) Unwrap() error { return e.Cause }

// FusionMode is a mode of the optional queue-fusion extension: a
// publisher may advertise a pull-style queue interface in place of
// per-value push signaling.
type FusionMode int

const (
	FusionNone FusionMode = iota
	FusionSync
	FusionAsync
	FusionThreadBarrier
)

// QueueSubscription is the optional fusion extension a Subscription may
// implement. Using forwards the handshake when the derived publisher
// advertises it (see Fuseable below).
type QueueSubscription interface {
	reactive.Subscription
	Poll() (v interface{}, ok bool)
	IsEmpty() bool
	ClearQueue()
	Size() int
	RequestFusion(requested FusionMode) (accepted FusionMode)
}

// Fuseable marks a Publisher whose Subscriptions implement
// QueueSubscription. Using type-switches on this to decide whether to
// bridge the fusion handshake through to its own downstream.
type Fuseable interface {
	reactive.Publisher
	fuseablePublisher()
}

// FuseablePublisher is embeddable in a custom Publisher to mark it
// Fuseable, since the marker method itself is unexported.
type FuseablePublisher struct{}

func (FuseablePublisher) fuseablePublisher() {}

// Using subscribes, once per downstream subscription, to a Publisher
// derived from a scoped resource, and guarantees the resource's cleanup
// runs — eagerly (before the terminal signal) or lazily (after) — exactly
// once, however the sequence ends: normal completion, error, or
// cancellation.
//
// Grounded on rsc.publisher.PublisherUsing in original_source.
func Using[R any](
	supplier func() (R, error),
	factory func(R) (reactive.Publisher, error),
	cleanup func(R) error,
	eager bool,
) reactive.Publisher {
	return reactive.NewPublisher(func(s reactive.Subscriber) {
		resource, err := supplier()
		if err != nil {
			subscription.Error(s, err)
			return
		}

		runCleanup := func() error { return cleanup(resource) }

		p, err := factory(resource)
		if err != nil {
			if cerr := runCleanup(); cerr != nil {
				err = &CleanupError{Cause: cerr, Suppressed: err}
			}
			subscription.Error(s, err)
			return
		}
		if p == nil {
			err = ErrNilPublisher
			if cerr := runCleanup(); cerr != nil {
				err = &CleanupError{Cause: cerr, Suppressed: err}
			}
			subscription.Error(s, err)
			return
		}

		if _, ok := p.(Fuseable); ok {
			p.Subscribe(&usingFuseableSubscriber{downstream: s, cleanup: runCleanup, eager: eager})
		} else {
			p.Subscribe(&usingSubscriber{downstream: s, cleanup: runCleanup, eager: eager})
		}
	})
}

// usingSubscriber is the non-fuseable adapter.
type usingSubscriber struct {
	downstream reactive.Subscriber
	cleanup    func() error
	eager      bool

	upstream reactive.Subscription
	done     atomic.Bool // CAS gate: cleanup must run exactly once
}

func (u *usingSubscriber) OnSubscribe(s reactive.Subscription) {
	if ok, _ := subscription.SetOnce(&u.upstream, s); !ok {
		return
	}
	u.downstream.OnSubscribe(u)
}

func (u *usingSubscriber) Request(n int64) { u.upstream.Request(n) }

func (u *usingSubscriber) Cancel() {
	if !u.done.CompareAndSwap(false, true) {
		return
	}
	u.upstream.Cancel()
	if err := u.cleanup(); err != nil {
		dropError(err)
	}
}

func (u *usingSubscriber) OnNext(v interface{}) { u.downstream.OnNext(v) }

func (u *usingSubscriber) OnError(t error) {
	if !u.done.CompareAndSwap(false, true) {
		return
	}
	if u.eager {
		if cerr := u.cleanup(); cerr != nil {
			t = &CleanupError{Cause: cerr, Suppressed: t}
		}
		u.downstream.OnError(t)
		return
	}
	u.downstream.OnError(t)
	if cerr := u.cleanup(); cerr != nil {
		dropError(cerr)
	}
}

func (u *usingSubscriber) OnComplete() {
	if !u.done.CompareAndSwap(false, true) {
		return
	}
	if u.eager {
		if cerr := u.cleanup(); cerr != nil {
			u.downstream.OnError(cerr)
			return
		}
		u.downstream.OnComplete()
		return
	}
	u.downstream.OnComplete()
	if cerr := u.cleanup(); cerr != nil {
		dropError(cerr)
	}
}

// usingFuseableSubscriber is the same termination/cleanup state machine
// as usingSubscriber, plus a fusion bridge: it forwards the queue-fusion
// handshake to its own downstream, and in synchronous-fusion mode treats
// a Poll that reaches end-of-stream as the sync-fusion analog of
// OnComplete, running cleanup inline.
type usingFuseableSubscriber struct {
	downstream reactive.Subscriber
	cleanup    func() error
	eager      bool

	guard    reactive.Subscription // duplicate-OnSubscribe guard; upstream's typed handle
	upstream QueueSubscription
	done     atomic.Bool
	mode     FusionMode
}

func (u *usingFuseableSubscriber) OnSubscribe(s reactive.Subscription) {
	qs, isQueue := s.(QueueSubscription)
	if !isQueue {
		// The publisher claimed Fuseable but its subscription doesn't
		// actually implement the extension; degrade to the plain path.
		// Signals still arrive here, so the plain adapter's cleanup goes
		// through this adapter's done gate to keep it to a single run.
		gated := func() error {
			if !u.done.CompareAndSwap(false, true) {
				return nil
			}
			return u.cleanup()
		}
		plain := &usingSubscriber{downstream: u.downstream, cleanup: gated, eager: u.eager}
		plain.OnSubscribe(s)
		return
	}
	if ok, _ := subscription.SetOnce(&u.guard, s); !ok {
		return
	}
	u.upstream = qs
	u.downstream.OnSubscribe(u)
}

func (u *usingFuseableSubscriber) Request(n int64) { u.upstream.Request(n) }

func (u *usingFuseableSubscriber) Cancel() {
	if !u.done.CompareAndSwap(false, true) {
		return
	}
	u.upstream.Cancel()
	if err := u.cleanup(); err != nil {
		dropError(err)
	}
}

func (u *usingFuseableSubscriber) OnNext(v interface{}) { u.downstream.OnNext(v) }

func (u *usingFuseableSubscriber) OnError(t error) {
	if !u.done.CompareAndSwap(false, true) {
		return
	}
	if u.eager {
		if cerr := u.cleanup(); cerr != nil {
			t = &CleanupError{Cause: cerr, Suppressed: t}
		}
		u.downstream.OnError(t)
		return
	}
	u.downstream.OnError(t)
	if cerr := u.cleanup(); cerr != nil {
		dropError(cerr)
	}
}

func (u *usingFuseableSubscriber) OnComplete() {
	if !u.done.CompareAndSwap(false, true) {
		return
	}
	if u.eager {
		if cerr := u.cleanup(); cerr != nil {
			u.downstream.OnError(cerr)
			return
		}
		u.downstream.OnComplete()
		return
	}
	u.downstream.OnComplete()
	if cerr := u.cleanup(); cerr != nil {
		dropError(cerr)
	}
}

// Poll, IsEmpty, ClearQueue, Size and RequestFusion bridge the fusion
// extension through to the derived publisher's own subscription.

func (u *usingFuseableSubscriber) Poll() (interface{}, bool) {
	v, ok := u.upstream.Poll()
	if !ok && u.mode == FusionSync {
		if u.done.CompareAndSwap(false, true) {
			if err := u.cleanup(); err != nil {
				dropError(err)
			}
		}
	}
	return v, ok
}

func (u *usingFuseableSubscriber) IsEmpty() bool { return u.upstream.IsEmpty() }
func (u *usingFuseableSubscriber) ClearQueue()   { u.upstream.ClearQueue() }
func (u *usingFuseableSubscriber) Size() int     { return u.upstream.Size() }

func (u *usingFuseableSubscriber) RequestFusion(requested FusionMode) FusionMode {
	m := u.upstream.RequestFusion(requested)
	u.mode = m
	return m
}

// dropError is the unsignaled-error sink: a cleanup failure discovered
// after the downstream is already gone (cancellation) or has already
// received its terminal signal (lazy mode) has nowhere left to go.
var dropError = func(err error) {
	log.Warnf("rsflow/flowable: dropped cleanup error: %v", err)
}
