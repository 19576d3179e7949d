package reactive_test

import (
	"testing"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/stretchr/testify/require"
)

func TestPublisherFunc(t *testing.T) {
	var got []interface{}
	pub := reactive.NewPublisher(func(s reactive.Subscriber) {
		s.OnSubscribe((&reactive.SubscriptionParts{
			RequestFn: func(n int64) {},
			CancelFn:  func() {},
		}).Build())
		s.OnNext(1)
		s.OnNext(2)
		s.OnComplete()
	})

	completed := false
	sub := (&reactive.SubscriberParts{
		OnNextFn:     func(v interface{}) { got = append(got, v) },
		OnCompleteFn: func() { completed = true },
	}).Build()

	pub.Subscribe(sub)

	require.Equal(t, []interface{}{1, 2}, got)
	require.True(t, completed)
}

func TestSubscriberPartsDefaultOnError(t *testing.T) {
	// OnError without an explicit handler must not panic - it falls back
	// to the default, which only prints the error.
	sub := (&reactive.SubscriberParts{}).Build()
	require.NotPanics(t, func() {
		sub.OnError(errTest)
	})
}

var errTest = errTestType{}

type errTestType struct{}

func (errTestType) Error() string { return "test error" }
