package netsource_test

import (
	"io"
	"net"
	"testing"

	"github.com/jakewins/rsflow/pkg/netsource"
	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/stretchr/testify/require"
)

func TestLinesEmitsIntegersThenCompletesOnEOF(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		io.WriteString(client, "1\n2\n3\n")
		client.Close()
	}()

	var got []interface{}
	completed := false
	var sub reactive.Subscription
	netsource.Lines(server).Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnNextFn:      func(v interface{}) { got = append(got, v) },
		OnCompleteFn:  func() { completed = true },
	}).Build())

	sub.Request(10)

	require.Equal(t, []interface{}{1, 2, 3}, got)
	require.True(t, completed)
}

func TestLinesRespectsBoundedDemand(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		io.WriteString(client, "1\n2\n3\n4\n")
	}()
	defer client.Close()

	var got []interface{}
	var sub reactive.Subscription
	netsource.Lines(server).Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnNextFn:      func(v interface{}) { got = append(got, v) },
	}).Build())

	sub.Request(2)
	require.Equal(t, []interface{}{1, 2}, got)

	sub.Request(1)
	require.Equal(t, []interface{}{1, 2, 3}, got)
}

func TestLinesMalformedLineSignalsError(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		io.WriteString(client, "not-a-number\n")
		client.Close()
	}()

	var gotErr error
	var sub reactive.Subscription
	netsource.Lines(server).Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { sub = s },
		OnErrorFn:     func(e error) { gotErr = e },
	}).Build())

	sub.Request(1)
	require.ErrorIs(t, gotErr, netsource.ErrMalformedLine)
}

func TestDialUnreachableAddressReturnsError(t *testing.T) {
	_, err := netsource.Dial("127.0.0.1:0")
	require.Error(t, err)
}
