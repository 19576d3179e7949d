package subscription_test

import (
	"testing"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsNonPositive(t *testing.T) {
	var gotErr error
	s := (&reactive.SubscriberParts{OnErrorFn: func(e error) { gotErr = e }}).Build()

	require.False(t, subscription.Validate(0, s))
	require.ErrorIs(t, gotErr, subscription.ErrInvalidRequest)

	gotErr = nil
	require.False(t, subscription.Validate(-5, s))
	require.ErrorIs(t, gotErr, subscription.ErrInvalidRequest)
}

func TestValidateAcceptsPositive(t *testing.T) {
	s := (&reactive.SubscriberParts{OnErrorFn: func(e error) { t.Fatalf("unexpected error: %v", e) }}).Build()
	require.True(t, subscription.Validate(1, s))
	require.True(t, subscription.Validate(subscription.Unbounded, s))
}

func TestSetOnce(t *testing.T) {
	var current reactive.Subscription
	first := (&reactive.SubscriptionParts{RequestFn: func(int64) {}, CancelFn: func() {}}).Build()

	ok, err := subscription.SetOnce(&current, first)
	require.True(t, ok)
	require.NoError(t, err)
	require.Same(t, first, current)

	cancelled := false
	second := (&reactive.SubscriptionParts{
		RequestFn: func(int64) {},
		CancelFn:  func() { cancelled = true },
	}).Build()

	ok, err = subscription.SetOnce(&current, second)
	require.False(t, ok)
	require.ErrorIs(t, err, subscription.ErrDuplicateSubscription)
	require.True(t, cancelled, "duplicate subscription must be cancelled")
	require.Same(t, first, current, "current must not change on a duplicate set")
}

func TestErrorDeliversSubscribeThenError(t *testing.T) {
	var events []string
	s := (&reactive.SubscriberParts{
		OnSubscribeFn: func(reactive.Subscription) { events = append(events, "subscribe") },
		OnErrorFn:     func(error) { events = append(events, "error") },
	}).Build()

	subscription.Error(s, subscription.ErrInvalidRequest)
	require.Equal(t, []string{"subscribe", "error"}, events)
}

func TestCompleteDeliversSubscribeThenComplete(t *testing.T) {
	var events []string
	s := (&reactive.SubscriberParts{
		OnSubscribeFn: func(reactive.Subscription) { events = append(events, "subscribe") },
		OnCompleteFn:  func() { events = append(events, "complete") },
	}).Build()

	subscription.Complete(s)
	require.Equal(t, []string{"subscribe", "complete"}, events)
}

func TestAddCapSaturates(t *testing.T) {
	require.Equal(t, int64(5), subscription.AddCap(2, 3))
	require.Equal(t, subscription.Unbounded, subscription.AddCap(subscription.Unbounded, 3))
	require.Equal(t, subscription.Unbounded, subscription.AddCap(subscription.Unbounded-1, 5))
}
