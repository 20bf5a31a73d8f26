package honeypot

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/classifier"
	"github.com/sentinelhq/sentinel/pkg/metrics"
	"github.com/sentinelhq/sentinel/pkg/types"
)

// EventSink receives every finished event. It is called from the
// connection goroutine and must be safe for concurrent use.
type EventSink func(ctx context.Context, evt *types.AttackEvent)

type CaptureOptions struct {
	ReadTimeout     time.Duration
	ReadChunkSize   int
	MaxPayloadBytes int
	MaxDecodedLen   int
}

func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		ReadTimeout:     5 * time.Second,
		ReadChunkSize:   4096,
		MaxPayloadBytes: 10000,
		MaxDecodedLen:   2000,
	}
}

// ConnectionHandler turns one accepted connection into one AttackEvent.
// A single handler is shared by every listener of an engine so that
// connection ids are unique within the process run.
type ConnectionHandler struct {
	opts       CaptureOptions
	classifier *classifier.Classifier
	sink       EventSink
	logger     *log.Entry
	seq        atomic.Uint64
}

func NewConnectionHandler(opts CaptureOptions, c *classifier.Classifier, sink EventSink, logger *log.Entry) *ConnectionHandler {
	if logger == nil {
		logger = log.StandardLogger().WithField("component", "handler")
	}

	return &ConnectionHandler{
		opts:       opts,
		classifier: c,
		sink:       sink,
		logger:     logger,
	}
}

// Connections returns how many connections were handled so far.
func (h *ConnectionHandler) Connections() uint64 {
	return h.seq.Load()
}

// Handle never panics and always closes conn.
func (h *ConnectionHandler) Handle(ctx context.Context, conn net.Conn, port int) {
	logger := h.logger.WithField("port", port)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic while handling connection: %v", r)
		}
	}()

	defer conn.Close()

	start := time.Now()
	connID := h.seq.Add(1)
	svc := Lookup(port)
	srcIP, srcPort := splitAddr(conn.RemoteAddr())

	logger = logger.WithFields(log.Fields{
		"conn":    connID,
		"src":     net.JoinHostPort(srcIP, strconv.Itoa(srcPort)),
		"service": svc.Name,
	})

	metrics.ConnectionsTotal.WithLabelValues(strconv.Itoa(port), svc.Name).Inc()

	if len(svc.Banner) > 0 {
		_ = conn.SetWriteDeadline(start.Add(h.opts.ReadTimeout))

		if _, err := conn.Write(svc.Banner); err != nil {
			logger.Debugf("banner not sent: %s", err)
		}
	}

	raw := h.capture(conn, start, logger)

	evt := &types.AttackEvent{
		Timestamp:     start.UTC(),
		SourceIP:      srcIP,
		SourcePort:    srcPort,
		TargetPort:    port,
		SimulatedPort: svc.SimulatedPort,
		Service:       svc.Name,
		PayloadSize:   len(raw),
		ConnectionID:  connID,
	}

	res := classifier.NoPayload()

	if len(raw) > 0 {
		metrics.BytesReceived.WithLabelValues(strconv.Itoa(port)).Add(float64(len(raw)))

		evt.Payload = Decode(raw, h.opts.MaxDecodedLen)
		res = h.classifier.Classify(evt.Payload, port)
	}

	evt.Type = res.Type
	evt.Severity = res.Severity
	evt.UserAgent = res.UserAgent

	logger.WithFields(log.Fields{
		"type":     evt.Type,
		"severity": evt.Severity,
		"bytes":    evt.PayloadSize,
	}).Debug("connection captured")
	logger.Tracef("payload: %q", evt.Payload)

	metrics.CaptureDuration.WithLabelValues(svc.Name).Observe(time.Since(start).Seconds())

	h.sink(ctx, evt)
}

// capture reads until EOF, the deadline, or MaxPayloadBytes.
func (h *ConnectionHandler) capture(conn net.Conn, start time.Time, logger *log.Entry) []byte {
	if err := conn.SetReadDeadline(start.Add(h.opts.ReadTimeout)); err != nil {
		logger.Debugf("unable to set read deadline: %s", err)
		return nil
	}

	buf := make([]byte, h.opts.ReadChunkSize)
	received := make([]byte, 0, h.opts.ReadChunkSize)

	for len(received) < h.opts.MaxPayloadBytes {
		want := min(len(buf), h.opts.MaxPayloadBytes-len(received))

		n, err := conn.Read(buf[:want])
		received = append(received, buf[:n]...)

		if err != nil {
			if !isTimeout(err) && !errors.Is(err, io.EOF) {
				logger.Debugf("read stopped: %s", err)
			}

			break
		}
	}

	return received
}

// Decode drops invalid UTF-8 sequences and keeps at most maxLen runes.
func Decode(raw []byte, maxLen int) string {
	return types.TruncateRunes(strings.ToValidUTF8(string(raw), ""), maxLen)
}

func splitAddr(addr net.Addr) (string, int) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}

	if addr == nil {
		return "", 0
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}

	p, _ := strconv.Atoi(port)

	return host, p
}
