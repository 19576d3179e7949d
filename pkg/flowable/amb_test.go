package flowable_test

import (
	"testing"

	"github.com/jakewins/rsflow/pkg/flowable"
	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/stretchr/testify/require"
)

// neverSource builds a Publisher that accepts a subscription but never
// signals anything until cancelled, recording whether it was cancelled.
func neverSource(cancelled *bool) reactive.Publisher {
	return reactive.NewPublisher(func(s reactive.Subscriber) {
		s.OnSubscribe((&reactive.SubscriptionParts{
			RequestFn: func(int64) {},
			CancelFn:  func() { *cancelled = true },
		}).Build())
	})
}

func TestAmbRelaysFirstResponder(t *testing.T) {
	var loserCancelled bool
	winner := sourceOf("fast")
	loser := neverSource(&loserCancelled)

	var got []interface{}
	completed := false
	flowable.Amb(loser, winner).Subscribe((&reactive.SubscriberParts{
		OnNextFn:     func(v interface{}) { got = append(got, v) },
		OnCompleteFn: func() { completed = true },
	}).Build())

	require.Equal(t, []interface{}{"fast"}, got)
	require.True(t, completed)
	require.True(t, loserCancelled, "losing source must be cancelled once a winner is decided")
}

func TestAmbWinnerDecidedByOnCompleteWithNoValues(t *testing.T) {
	var loserCancelled bool
	loser := neverSource(&loserCancelled)
	winnerEmpty := reactive.NewPublisher(func(s reactive.Subscriber) {
		s.OnSubscribe((&reactive.SubscriptionParts{RequestFn: func(int64) {}, CancelFn: func() {}}).Build())
		s.OnComplete()
	})

	completed := false
	flowable.Amb(loser, winnerEmpty).Subscribe((&reactive.SubscriberParts{
		OnCompleteFn: func() { completed = true },
	}).Build())

	require.True(t, completed)
	require.True(t, loserCancelled)
}

func TestAmbZeroSourcesCompletesImmediately(t *testing.T) {
	completed := false
	flowable.Amb().Subscribe((&reactive.SubscriberParts{OnCompleteFn: func() { completed = true }}).Build())
	require.True(t, completed)
}

func TestAmbSingleSourceSubscribesDirectly(t *testing.T) {
	got, completed, _ := subscribeCollect(t, flowable.Amb(sourceOf(1, 2)), 10)
	require.Equal(t, []interface{}{1, 2}, *got)
	require.True(t, *completed)
}

func TestAmbNilSourceSignalsError(t *testing.T) {
	var gotErr error
	flowable.Amb(nil, sourceOf(1)).Subscribe((&reactive.SubscriberParts{
		OnErrorFn: func(e error) { gotErr = e },
	}).Build())
	require.ErrorIs(t, gotErr, flowable.ErrNilSource)
}

func TestAmbForwardsUpstreamErrorFromWinner(t *testing.T) {
	var loserCancelled bool
	loser := neverSource(&loserCancelled)
	boom := errTestErr{"amb boom"}
	winner := reactive.NewPublisher(func(s reactive.Subscriber) {
		s.OnSubscribe((&reactive.SubscriptionParts{RequestFn: func(int64) {}, CancelFn: func() {}}).Build())
		s.OnError(boom)
	})

	var gotErr error
	flowable.Amb(loser, winner).Subscribe((&reactive.SubscriberParts{
		OnErrorFn: func(e error) { gotErr = e },
	}).Build())

	require.Equal(t, boom, gotErr)
	require.True(t, loserCancelled)
}

func TestAmbCancelStopsAllCandidates(t *testing.T) {
	var c1, c2 bool
	s1 := neverSource(&c1)
	s2 := neverSource(&c2)

	var sub reactive.Subscription
	flowable.Amb(s1, s2).Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
	}).Build())

	sub.Cancel()
	require.True(t, c1)
	require.True(t, c2)
}
