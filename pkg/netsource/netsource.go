// Package netsource adapts a net.Conn into a demand-driven
// reactive.Publisher of newline-delimited integer lines.
//
// Grounded on the teacher's pkg/transport/tcp (Dial/Listen,
// accept-loop-with-deadline, control-channel shutdown), stripped of the
// RSocket setup/frame handshake it used to perform once a connection was
// accepted.
package netsource

import (
	"bufio"
	stderrors "errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jakewins/rsflow/pkg/reactive"
	"github.com/jakewins/rsflow/pkg/subscription"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "netsource")

// ErrMalformedLine is reported when a line read from the connection
// doesn't parse as an integer.
var ErrMalformedLine = errors.New("line did not parse as an integer")

// Lines returns a Publisher of the integers read, one per line, from
// conn. Each Request(n) reads and emits at most n further lines
// synchronously on the calling goroutine — this publisher is an
// end-user source, not an operator, so it is allowed to block on I/O
// (see the concurrency model: only the library's own operators must stay
// non-blocking).
//
// Subscribe may only be called once; conn is closed on Cancel or once
// the source reaches EOF.
func Lines(conn net.Conn) reactive.Publisher {
	return reactive.NewPublisher(func(s reactive.Subscriber) {
		src := &lineSource{
			downstream: s,
			reader:     bufio.NewReader(conn),
			conn:       conn,
		}
		s.OnSubscribe(src)
	})
}

type lineSource struct {
	downstream reactive.Subscriber
	reader     *bufio.Reader
	conn       net.Conn

	mu        sync.Mutex
	cancelled bool
	done      bool
}

func (l *lineSource) Request(n int64) {
	if !subscription.Validate(n, l.downstream) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelled || l.done {
		return
	}

	unbounded := n == subscription.Unbounded
	for emitted := int64(0); unbounded || emitted < n; emitted++ {
		line, err := l.reader.ReadString('\n')
		line = trimNewline(line)

		if line != "" {
			v, perr := strconv.Atoi(line)
			if perr != nil {
				l.done = true
				l.downstream.OnError(errors.Wrap(ErrMalformedLine, line))
				l.closeLocked()
				return
			}
			l.downstream.OnNext(v)
		}

		if err != nil {
			l.done = true
			if stderrors.Is(err, io.EOF) {
				l.downstream.OnComplete()
			} else {
				l.downstream.OnError(err)
			}
			l.closeLocked()
			return
		}
	}
}

func (l *lineSource) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelled {
		return
	}
	l.cancelled = true
	l.closeLocked()
}

func (l *lineSource) closeLocked() {
	if err := l.conn.Close(); err != nil {
		log.WithError(err).Debug("closing connection")
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// Server accepts connections on a TCP listener and hands each one's
// Lines Publisher to the supplied handler, one goroutine per connection.
// Grounded on the teacher's tcp.server accept-loop-with-deadline and
// control-channel shutdown.
type Server struct {
	listener *net.TCPListener
	handle   func(reactive.Publisher)

	control chan struct{}
	wg      sync.WaitGroup
}

// Listen starts listening on address. Call Serve to run the accept loop.
func Listen(address string, handle func(reactive.Publisher)) (*Server, error) {
	laddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}
	listener, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, err
	}
	return &Server{listener: listener, handle: handle, control: make(chan struct{})}, nil
}

// Serve runs the accept loop until Shutdown is called, returning then or
// on any accept error other than the loop's own deadline timeout.
func (srv *Server) Serve() error {
	defer srv.listener.Close()
	for {
		select {
		case <-srv.control:
			return nil
		default:
		}

		srv.listener.SetDeadline(time.Now().Add(time.Second))
		conn, err := srv.listener.AcceptTCP()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			select {
			case <-srv.control:
				return nil
			default:
				return err
			}
		}

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.handle(Lines(conn))
		}()
	}
}

// Shutdown signals the accept loop to stop and waits for in-flight
// connection handlers to return.
func (srv *Server) Shutdown() {
	close(srv.control)
	srv.wg.Wait()
}

// Dial connects to address and returns its line Publisher.
func Dial(address string) (reactive.Publisher, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		return nil, err
	}
	return Lines(conn), nil
}
