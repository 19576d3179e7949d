package flowable_test

import (
	"math"
	"testing"

	"github.com/jakewins/rsflow/pkg/flowable"
	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/stretchr/testify/require"
)

func TestRangeUnboundedDemandFastPath(t *testing.T) {
	pub, err := flowable.Range(1, 5)
	require.NoError(t, err)

	var got []interface{}
	completed := false
	var sub reactive.Subscription
	pub.Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnNextFn:      func(v interface{}) { got = append(got, v) },
		OnCompleteFn:  func() { completed = true },
	}).Build())

	sub.Request(subscription.Unbounded)

	require.Equal(t, []interface{}{1, 2, 3, 4, 5}, got)
	require.True(t, completed)
}

func TestRangeBoundedDemandInTwoBatches(t *testing.T) {
	pub, err := flowable.Range(10, 3)
	require.NoError(t, err)

	var got []interface{}
	completed := false
	var sub reactive.Subscription
	pub.Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnNextFn:      func(v interface{}) { got = append(got, v) },
		OnCompleteFn:  func() { completed = true },
	}).Build())

	sub.Request(2)
	require.Equal(t, []interface{}{10, 11}, got)
	require.False(t, completed)

	sub.Request(10)
	require.Equal(t, []interface{}{10, 11, 12}, got)
	require.True(t, completed)
}

func TestRangeEmptyCompletesImmediately(t *testing.T) {
	pub, err := flowable.Range(1, 0)
	require.NoError(t, err)

	completed := false
	pub.Subscribe((&reactive.SubscriberParts{OnCompleteFn: func() { completed = true }}).Build())
	require.True(t, completed)
}

func TestRangeOverflowIsRejected(t *testing.T) {
	_, err := flowable.Range(math.MaxInt32-1, 5)
	require.ErrorIs(t, err, flowable.ErrInvalidRange)
}

func TestRangeNegativeCountIsRejected(t *testing.T) {
	_, err := flowable.Range(0, -1)
	require.Error(t, err)
}

func TestRangeCancellationStopsEmission(t *testing.T) {
	pub, err := flowable.Range(0, 1000)
	require.NoError(t, err)

	var got []interface{}
	var sub reactive.Subscription
	pub.Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnNextFn: func(v interface{}) {
			got = append(got, v)
		},
	}).Build())

	sub.Request(5)
	require.Len(t, got, 5)
	sub.Cancel()
	sub.Request(1000)
	require.Len(t, got, 5, "cancellation must stop further emission")
}

func TestRangeInvalidRequestSignalsError(t *testing.T) {
	pub, err := flowable.Range(0, 5)
	require.NoError(t, err)

	var gotErr error
	var sub reactive.Subscription
	pub.Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnErrorFn:     func(e error) { gotErr = e },
	}).Build())

	sub.Request(0)
	require.ErrorIs(t, gotErr, subscription.ErrInvalidRequest)
}
