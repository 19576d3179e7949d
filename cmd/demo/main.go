// Command demo wires the library's operators together over a TCP
// integer line source. It is the only binary in this module that
// touches flags, environment, or the network; the operator library
// itself stays a pure, dependency-free-of-I/O core.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jakewins/rsflow/pkg/flowable"
	"github.com/jakewins/rsflow/pkg/netsource"
	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "demo")

var (
	listenAddr string
	dialAddr   string
	lastN      int
)

func init() {
	flag.StringVar(&listenAddr, "listen", "", "serve a TCP integer line source on this address")
	flag.StringVar(&dialAddr, "dial", "", "dial a TCP integer line source at this address and print its tail")
	flag.IntVar(&lastN, "last", 3, "how many trailing values to keep with TakeLast")
}

func main() {
	flag.Parse()

	switch {
	case listenAddr != "":
		runServer(listenAddr)
	case dialAddr != "":
		runClient(dialAddr)
	default:
		fmt.Fprintln(os.Stderr, "usage: demo -listen addr | -dial addr")
		os.Exit(2)
	}
}

// runServer accepts connections and, for each one, prints the last -last
// values it sent before closing — demonstrating TakeLast over a live,
// demand-driven network source.
func runServer(addr string) {
	srv, err := netsource.Listen(addr, func(lines reactive.Publisher) {
		tail, err := flowable.TakeLast(lines, lastN)
		if err != nil {
			log.WithError(err).Error("building TakeLast pipeline")
			return
		}

		var values []interface{}
		done := make(chan struct{})
		tail.Subscribe((&reactive.SubscriberParts{
			OnSubscribeFn: func(s reactive.Subscription) { s.Request(subscription.Unbounded) },
			OnNextFn:      func(v interface{}) { values = append(values, v) },
			OnErrorFn: func(e error) {
				log.WithError(e).Warn("connection source error")
				close(done)
			},
			OnCompleteFn: func() {
				log.WithField("tail", values).Info("connection closed")
				close(done)
			},
		}).Build())
		<-done
	})
	if err != nil {
		log.WithError(err).Fatal("listen failed")
	}

	log.WithField("addr", addr).Info("serving")
	if err := srv.Serve(); err != nil {
		log.WithError(err).Fatal("serve failed")
	}
}

// runClient dials addr and wraps the resulting line source in Using, so
// that the connection (and its goroutine-free resource cleanup) is
// guaranteed to close exactly once regardless of how the stream ends —
// then prints every line until the amb race between the network source
// and a local timeout decides the sequence is done.
func runClient(addr string) {
	pub := flowable.Using(
		func() (net.Conn, error) {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return nil, err
			}
			log.WithField("addr", addr).Info("connected")
			return conn, nil
		},
		func(conn net.Conn) (reactive.Publisher, error) {
			return netsource.Lines(conn), nil
		},
		func(conn net.Conn) error {
			log.Info("closing connection")
			return conn.Close()
		},
		false,
	)

	raced := flowable.Amb(pub, timeoutSource(30*time.Second))

	done := make(chan struct{})
	raced.Subscribe((&reactive.SubscriberParts{
		OnSubscribeFn: func(s reactive.Subscription) { s.Request(subscription.Unbounded) },
		OnNextFn:      func(v interface{}) { fmt.Println(v) },
		OnErrorFn: func(e error) {
			log.WithError(e).Error("stream failed")
			close(done)
		},
		OnCompleteFn: func() {
			log.Info("stream complete")
			close(done)
		},
	}).Build())
	<-done
}

// timeoutSource completes, with no values, after d — used as an Amb
// candidate so a hung network source doesn't block the demo forever.
func timeoutSource(d time.Duration) reactive.Publisher {
	return reactive.NewPublisher(func(s reactive.Subscriber) {
		timer := time.NewTimer(d)
		cancelled := make(chan struct{})
		s.OnSubscribe((&reactive.SubscriptionParts{
			RequestFn: func(int64) {},
			CancelFn:  func() { timer.Stop(); close(cancelled) },
		}).Build())
		go func() {
			select {
			case <-timer.C:
				s.OnComplete()
			case <-cancelled:
			}
		}()
	})
}
