// Package reactive defines the four-signal Reactive Streams contract that
// every operator in this module is written against: Publisher, Subscriber
// and Subscription. It is treated as a given, external protocol — the
// operators in pkg/flowable build on top of it, they don't redefine it.
package reactive

import "fmt"

// A Publisher is a provider of a potentially unbounded number of sequenced
// elements, publishing them according to the demand received from its
// Subscriber.
//
// A Publisher can serve multiple Subscribers, dynamically subscribed at
// various points in time.
type Publisher interface {
	// Subscribe requests the Publisher to start streaming data.
	// This is a "factory method": it can be called multiple times, each
	// time starting a new Subscription.
	Subscribe(s Subscriber)
}

// Subscriber will receive a call to OnSubscribe once after being passed to
// Publisher.Subscribe; the Subscription provided lets the Subscriber
// request elements from the Publisher.
type Subscriber interface {
	OnSubscribe(s Subscription)
	OnNext(v interface{})
	OnError(e error)
	OnComplete()
}

// Subscription represents a one-to-one lifecycle of a Subscriber
// subscribing to a Publisher. Request and Cancel must tolerate being
// called from any goroutine, including concurrently with signal delivery.
type Subscription interface {
	// Request grants n further elements of demand. n must be positive;
	// implementations that receive n <= 0 signal a protocol violation
	// instead of panicking (see pkg/subscription.Validate).
	Request(n int64)
	// Cancel revokes interest. Idempotent.
	Cancel()
}

// PublisherFunc adapts a plain subscribe function to a Publisher, mirroring
// the teacher's own NewPublisher helper.
type PublisherFunc func(s Subscriber)

// Subscribe implements Publisher.
func (f PublisherFunc) Subscribe(s Subscriber) { f(s) }

// SubscriberParts assembles a Subscriber out of individual callback
// functions, filling in defaults for anything left nil: no-ops, except
// OnError, whose default prints the error to stdout. Handy for
// tests and for the demo binary, where implementing the full interface by
// hand would be needless ceremony.
type SubscriberParts struct {
	OnSubscribeFn func(Subscription)
	OnNextFn      func(interface{})
	OnErrorFn     func(error)
	OnCompleteFn  func()
}

// Build fills in any nil functions and returns the assembled Subscriber.
func (s *SubscriberParts) Build() Subscriber {
	if s.OnSubscribeFn == nil {
		s.OnSubscribeFn = func(Subscription) {}
	}
	if s.OnNextFn == nil {
		s.OnNextFn = func(interface{}) {}
	}
	if s.OnErrorFn == nil {
		s.OnErrorFn = func(e error) {
			fmt.Printf("unhandled error: %s\n", e.Error())
		}
	}
	if s.OnCompleteFn == nil {
		s.OnCompleteFn = func() {}
	}
	return &assembledSubscriber{s}
}

type assembledSubscriber struct {
	parts *SubscriberParts
}

func (as *assembledSubscriber) OnSubscribe(s Subscription) { as.parts.OnSubscribeFn(s) }
func (as *assembledSubscriber) OnNext(v interface{})       { as.parts.OnNextFn(v) }
func (as *assembledSubscriber) OnError(e error)            { as.parts.OnErrorFn(e) }
func (as *assembledSubscriber) OnComplete()                { as.parts.OnCompleteFn() }

// SubscriptionParts assembles a Subscription out of individual callback
// functions.
type SubscriptionParts struct {
	RequestFn func(int64)
	CancelFn  func()
}

// Build returns the assembled Subscription.
func (s *SubscriptionParts) Build() Subscription {
	return &assembledSubscription{s}
}

type assembledSubscription struct {
	parts *SubscriptionParts
}

func (as *assembledSubscription) Request(n int64) { as.parts.RequestFn(n) }
func (as *assembledSubscription) Cancel()         { as.parts.CancelFn() }

// NewPublisher adapts a plain subscribe function to a Publisher.
func NewPublisher(subscribe func(Subscriber)) Publisher {
	return PublisherFunc(subscribe)
}
