// Package honeypot binds the decoy ports and captures what clients send.
package honeypot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sentinelhq/sentinel/pkg/metrics"
)

// Listener owns one bound socket and its accept loop.
type Listener struct {
	Port       int
	ListenAddr string
	// AcceptPoll bounds how long a stopped listener can stay in Accept.
	AcceptPoll time.Duration
	Logger     *log.Entry

	handler  *ConnectionHandler
	running  *atomic.Bool
	limit    *semaphore.Weighted
	inflight *sync.WaitGroup
	listener *net.TCPListener
}

// NewListener prepares a listener. running is shared by every listener of
// an engine; limit may be nil for no cap on concurrent connections;
// inflight tracks connection goroutines and may be nil.
func NewListener(port int, handler *ConnectionHandler, running *atomic.Bool, limit *semaphore.Weighted, inflight *sync.WaitGroup) *Listener {
	if inflight == nil {
		inflight = &sync.WaitGroup{}
	}

	return &Listener{
		Port:       port,
		AcceptPoll: time.Second,
		Logger:     log.StandardLogger().WithField("port", port),
		handler:    handler,
		running:    running,
		limit:      limit,
		inflight:   inflight,
	}
}

// Listen binds the socket. Errors wrap ErrPortInUse or ErrPermissionDenied
// when the OS reports them.
func (l *Listener) Listen() error {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(l.ListenAddr, strconv.Itoa(l.Port)))
	if err != nil {
		return fmt.Errorf("could not resolve addr %s: %w", l.ListenAddr, err)
	}

	tcpListener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return bindError(l.Port, err)
	}

	l.listener = tcpListener

	// port 0 lets the kernel choose
	if l.Port == 0 {
		l.Port = tcpListener.Addr().(*net.TCPAddr).Port
	}

	l.Logger.Debugf("listening on %s", tcpListener.Addr())

	return nil
}

// Addr is the bound address, nil before Listen.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}

	return l.listener.Addr()
}

// Serve accepts connections until the running flag is cleared, ctx is
// done, or the socket is closed. Each connection gets its own goroutine.
func (l *Listener) Serve(ctx context.Context) error {
	if l.listener == nil {
		return errors.New("listener is not bound")
	}

	defer l.listener.Close()

	metrics.ListenersActive.Inc()
	defer metrics.ListenersActive.Dec()

	for l.running.Load() && ctx.Err() == nil {
		if err := l.listener.SetDeadline(time.Now().Add(l.AcceptPoll)); err != nil {
			return fmt.Errorf("setting accept deadline: %w", err)
		}

		conn, err := l.listener.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}

			if !l.running.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("accept on port %d: %w", l.Port, err)
		}

		l.dispatch(ctx, conn)
	}

	return nil
}

func (l *Listener) dispatch(ctx context.Context, conn net.Conn) {
	if l.limit != nil && !l.limit.TryAcquire(1) {
		metrics.ConnectionsDropped.WithLabelValues(strconv.Itoa(l.Port)).Inc()
		l.Logger.Debugf("connection cap reached, dropping %s", conn.RemoteAddr())
		conn.Close()

		return
	}

	l.inflight.Add(1)

	go func() {
		defer l.inflight.Done()

		if l.limit != nil {
			defer l.limit.Release(1)
		}

		// stopping the listener must not abort a capture in progress
		l.handler.Handle(context.WithoutCancel(ctx), conn, l.Port)
	}()
}

// Close unblocks a pending Accept.
func (l *Listener) Close() error {
	if l.listener == nil {
		return nil
	}

	if err := l.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("could not close listener on port %d: %w", l.Port, err)
	}

	return nil
}
