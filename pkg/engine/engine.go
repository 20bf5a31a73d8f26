// Package engine ties the listeners, the store and the subscribers together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"gopkg.in/tomb.v2"

	"github.com/sentinelhq/sentinel/pkg/classifier"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/honeypot"
	"github.com/sentinelhq/sentinel/pkg/types"
)

var (
	ErrAlreadyRunning   = errors.New("engine is already running")
	ErrNotRunning       = errors.New("engine is not running")
	ErrPermissionDenied = honeypot.ErrPermissionDenied
	ErrNoPortBound      = errors.New("no port could be bound")
)

const defaultDispatchQueueSize = 1024

type Options struct {
	ListenAddr     string
	Capture        honeypot.CaptureOptions
	AcceptPoll     time.Duration
	BindStagger    time.Duration
	MaxConnections int
	// DispatchQueueSize bounds the events waiting for the subscribers.
	DispatchQueueSize int
}

func DefaultOptions() Options {
	return Options{
		Capture:     honeypot.DefaultCaptureOptions(),
		AcceptPoll:        time.Second,
		BindStagger:       100 * time.Millisecond,
		DispatchQueueSize: defaultDispatchQueueSize,
	}
}

func OptionsFromConfig(cfg *csconfig.HoneypotCfg) Options {
	return Options{
		ListenAddr: cfg.ListenAddr,
		Capture: honeypot.CaptureOptions{
			ReadTimeout:     cfg.ReadTimeoutDuration,
			ReadChunkSize:   cfg.ReadChunkSize,
			MaxPayloadBytes: cfg.MaxPayloadBytes,
			MaxDecodedLen:   cfg.MaxDecodedLen,
		},
		AcceptPoll:        cfg.AcceptPollDuration,
		BindStagger:       cfg.BindStaggerDuration,
		MaxConnections:    cfg.MaxConnections,
		DispatchQueueSize: defaultDispatchQueueSize,
	}
}

type Status struct {
	Running     bool   `json:"running"`
	Ports       []int  `json:"ports"`
	Connections uint64 `json:"connections"`
}

// Engine owns every piece of mutable state of a honeypot instance.
type Engine struct {
	store   *database.Store
	opts    Options
	handler *honeypot.ConnectionHandler
	logger  *log.Entry

	running  atomic.Bool
	limit    *semaphore.Weighted
	inflight sync.WaitGroup

	// lifecycle
	mu         sync.Mutex
	listeners  []*honeypot.Listener
	ports      []int
	listenTomb *tomb.Tomb

	subMu       sync.RWMutex
	subscribers []Subscriber

	// record and enqueue happen under persistMu so that subscribers see
	// events in the order the store accepted them. The enqueue never
	// blocks: when the queue is full the event is kept in the store only.
	persistMu    sync.Mutex
	queue        chan *types.AttackEvent
	dispatchTomb tomb.Tomb
}

func New(store *database.Store, opts Options, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.StandardLogger().WithField("component", "engine")
	}

	queueSize := opts.DispatchQueueSize
	if queueSize <= 0 {
		queueSize = defaultDispatchQueueSize
	}

	e := &Engine{
		store:  store,
		opts:   opts,
		logger: logger,
		queue:  make(chan *types.AttackEvent, queueSize),
	}

	if opts.MaxConnections > 0 {
		e.limit = semaphore.NewWeighted(int64(opts.MaxConnections))
	}

	e.handler = honeypot.NewConnectionHandler(opts.Capture, classifier.New(), e.submit, logger.WithField("component", "handler"))

	e.dispatchTomb.Go(e.dispatchLoop)

	return e
}

// Subscribe registers s; it receives events persisted from now on.
func (e *Engine) Subscribe(s Subscriber) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	e.subscribers = append(e.subscribers, s)
}

// Start binds ports (the default set for highPortMode when empty) and
// serves them until Stop. A port already in use is skipped.
func (e *Engine) Start(ctx context.Context, ports []int, highPortMode bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return ErrAlreadyRunning
	}

	if len(ports) == 0 {
		ports = honeypot.DefaultPorts(highPortMode)
	}

	// listeners observe the flag as soon as they serve
	e.running.Store(true)

	var (
		bound           []*honeypot.Listener
		permissionFails int
	)

	for i, port := range ports {
		if i > 0 && e.opts.BindStagger > 0 {
			select {
			case <-ctx.Done():
				e.abortStart(bound)
				return ctx.Err()
			case <-time.After(e.opts.BindStagger):
			}
		}

		l := honeypot.NewListener(port, e.handler, &e.running, e.limit, &e.inflight)
		l.ListenAddr = e.opts.ListenAddr
		l.AcceptPoll = e.opts.AcceptPoll
		l.Logger = e.logger.WithField("port", port)

		if err := l.Listen(); err != nil {
			switch {
			case errors.Is(err, honeypot.ErrPortInUse):
				l.Logger.Warnf("port %d is already in use, skipping", port)
			case errors.Is(err, honeypot.ErrPermissionDenied):
				permissionFails++
				l.Logger.Errorf("permission denied on port %d (privileged ports need root or high port mode)", port)
			default:
				l.Logger.Errorf("unable to listen: %s", err)
			}

			continue
		}

		bound = append(bound, l)
	}

	if len(bound) == 0 {
		e.running.Store(false)

		if permissionFails > 0 {
			return fmt.Errorf("%w: no honeypot port could be bound", ErrPermissionDenied)
		}

		return ErrNoPortBound
	}

	t := &tomb.Tomb{}
	serveCtx := t.Context(context.Background())

	e.listeners = bound
	e.ports = make([]int, 0, len(bound))

	for _, l := range bound {
		e.ports = append(e.ports, l.Port)

		t.Go(func() error {
			// one broken port does not bring the others down
			if err := l.Serve(serveCtx); err != nil {
				l.Logger.Errorf("listener stopped: %s", err)
			}

			return nil
		})
	}

	e.listenTomb = t

	e.logger.Infof("honeypot started on %d port(s): %v", len(e.ports), e.ports)

	return nil
}

func (e *Engine) abortStart(bound []*honeypot.Listener) {
	e.running.Store(false)

	for _, l := range bound {
		_ = l.Close()
	}
}

// Stop clears the running flag and closes every socket. Connections
// already accepted finish on their own.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return ErrNotRunning
	}

	e.running.Store(false)

	var errs []error

	for _, l := range e.listeners {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	e.listenTomb.Kill(nil)

	if err := e.listenTomb.Wait(); err != nil {
		errs = append(errs, err)
	}

	e.listeners = nil
	e.ports = nil
	e.listenTomb = nil

	e.logger.Info("honeypot stopped")

	return errors.Join(errs...)
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		Running:     e.running.Load(),
		Ports:       slices.Clone(e.ports),
		Connections: e.handler.Connections(),
	}
}

// Shutdown stops the listeners, waits for in-flight connections and
// delivers what is still queued, then closes the subscribers that
// implement io.Closer.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		e.logger.Warningf("while stopping listeners: %s", err)
	}

	done := make(chan struct{})

	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warning("timed out waiting for in-flight connections")
	}

	e.dispatchTomb.Kill(nil)

	if err := e.dispatchTomb.Wait(); err != nil {
		e.logger.Warningf("dispatcher returned error: %s", err)
	}

	e.subMu.RLock()
	defer e.subMu.RUnlock()

	var errs []error

	for _, s := range e.subscribers {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}

	return errors.Join(errs...)
}
