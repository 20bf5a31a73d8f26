package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *database.Store) {
	t.Helper()

	return newTestEngineWith(t, func(*Options) {})
}

func newTestEngineWith(t *testing.T, tune func(*Options)) (*Engine, *database.Store) {
	t.Helper()

	cfg := &csconfig.DatabaseCfg{
		DbPath:          filepath.Join(t.TempDir(), "engine.db"),
		MaxPayloadStore: csconfig.DefaultMaxPayloadStore,
	}

	store, err := database.NewStore(t.Context(), cfg, log.WithField("test", t.Name()))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.ListenAddr = "127.0.0.1"
	opts.AcceptPoll = 50 * time.Millisecond
	opts.BindStagger = 10 * time.Millisecond
	opts.Capture.ReadTimeout = 300 * time.Millisecond

	tune(&opts)

	e := New(store, opts, log.WithField("test", t.Name()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = e.Shutdown(ctx)
		store.Close()
	})

	return e, store
}

type chanSubscriber struct {
	events chan *types.AttackEvent
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{events: make(chan *types.AttackEvent, 256)}
}

func (c *chanSubscriber) Name() string { return "chan" }

func (c *chanSubscriber) OnEvent(_ context.Context, evt *types.AttackEvent) error {
	c.events <- evt
	return nil
}

func (c *chanSubscriber) next(t *testing.T) *types.AttackEvent {
	t.Helper()

	select {
	case evt := <-c.events:
		return evt
	case <-time.After(3 * time.Second):
		require.FailNow(t, "no event delivered")
		return nil
	}
}

func sendPayload(t *testing.T, port int, payload string) {
	t.Helper()

	c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)

	defer c.Close()

	if payload != "" {
		_, err = c.Write([]byte(payload))
		require.NoError(t, err)
	}

	require.NoError(t, c.(*net.TCPConn).CloseWrite())
}

func testEvent(ip string, sev types.Severity) *types.AttackEvent {
	return &types.AttackEvent{
		Timestamp:     time.Now().UTC(),
		Type:          types.BruteForce,
		SourceIP:      ip,
		SourcePort:    50000,
		TargetPort:    2222,
		SimulatedPort: 22,
		Service:       "SSH",
		Payload:       "root",
		PayloadSize:   4,
		Severity:      sev,
	}
}

func TestStartStop(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.Start(t.Context(), []int{0, 0}, true))
	assert.True(t, e.Running())

	st := e.Status()
	assert.True(t, st.Running)
	assert.Len(t, st.Ports, 2)

	err := e.Start(t.Context(), []int{0}, true)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, e.Stop())
	assert.False(t, e.Running())
	assert.Empty(t, e.Status().Ports)

	for _, port := range st.Ports {
		_, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
		require.Error(t, err)
	}

	require.ErrorIs(t, e.Stop(), ErrNotRunning)

	// restartable
	require.NoError(t, e.Start(t.Context(), []int{0}, true))
	require.NoError(t, e.Stop())
}

func TestStartSkipsPortInUse(t *testing.T) {
	e, _ := newTestEngine(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer busy.Close()

	busyPort := busy.Addr().(*net.TCPAddr).Port

	require.NoError(t, e.Start(t.Context(), []int{busyPort, 0}, true))

	ports := e.Status().Ports
	require.Len(t, ports, 1)
	assert.NotEqual(t, busyPort, ports[0])
}

func TestStartNothingBound(t *testing.T) {
	e, _ := newTestEngine(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer busy.Close()

	err = e.Start(t.Context(), []int{busy.Addr().(*net.TCPAddr).Port}, true)
	require.ErrorIs(t, err, ErrNoPortBound)
	assert.False(t, e.Running())
	require.ErrorIs(t, e.Stop(), ErrNotRunning)
}

func TestStartCancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	e.opts.BindStagger = time.Hour

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := e.Start(ctx, []int{0, 0}, true)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.Running())
}

func TestCaptureIsPersistedAndDispatched(t *testing.T) {
	e, store := newTestEngine(t)

	sub := newChanSubscriber()
	e.Subscribe(sub)

	require.NoError(t, e.Start(t.Context(), []int{0}, true))

	port := e.Status().Ports[0]
	sendPayload(t, port, "GET /?id=1 UNION SELECT * FROM users")

	evt := sub.next(t)
	assert.NotZero(t, evt.ID)
	assert.Equal(t, types.SQLInjection, evt.Type)
	assert.Equal(t, types.SeverityHigh, evt.Severity)
	assert.Equal(t, port, evt.TargetPort)

	stored, err := store.Event(t.Context(), evt.ID)
	require.NoError(t, err)
	assert.Equal(t, evt.Payload, stored.Payload)

	recent := e.RecentEvents(t.Context(), 10)
	require.Len(t, recent, 1)
	assert.Equal(t, evt.ID, recent[0].ID)

	alerts := e.Alerts(t.Context(), 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, evt.ID, alerts[0].AttackID)
	assert.Equal(t, 1, int(e.Status().Connections))
}

func TestNoDataConnection(t *testing.T) {
	e, _ := newTestEngine(t)

	sub := newChanSubscriber()
	e.Subscribe(sub)

	require.NoError(t, e.Start(t.Context(), []int{0}, true))
	sendPayload(t, e.Status().Ports[0], "")

	evt := sub.next(t)
	assert.Equal(t, types.ConnectionAttempt, evt.Type)
	assert.Equal(t, types.SeverityLow, evt.Severity)
	assert.Zero(t, evt.PayloadSize)
	assert.Empty(t, e.Alerts(t.Context(), 10))
}

type panicSubscriber struct{}

func (panicSubscriber) Name() string { return "panic" }

func (panicSubscriber) OnEvent(context.Context, *types.AttackEvent) error {
	panic("boom")
}

func TestSubscriberIsolation(t *testing.T) {
	e, store := newTestEngine(t)

	var failing atomic.Int32

	e.Subscribe(panicSubscriber{})
	e.Subscribe(SubscriberFunc("failing", func(context.Context, *types.AttackEvent) error {
		failing.Add(1)
		return errors.New("unreachable sink")
	}))

	sub := newChanSubscriber()
	e.Subscribe(sub)

	e.submit(t.Context(), testEvent("10.0.0.1", types.SeverityLow))

	evt := sub.next(t)
	assert.Equal(t, "10.0.0.1", evt.SourceIP)
	assert.Equal(t, int32(1), failing.Load())

	stats, err := store.Statistics(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalAttacks)
}

func TestSubscribersSeePersistOrder(t *testing.T) {
	e, _ := newTestEngine(t)

	sub := newChanSubscriber()
	e.Subscribe(sub)

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			e.submit(t.Context(), testEvent(fmt.Sprintf("10.0.1.%d", i), types.SeverityLow))
		}()
	}

	wg.Wait()

	last := int64(0)

	for range 50 {
		evt := sub.next(t)
		assert.Greater(t, evt.ID, last)
		last = evt.ID
	}
}

func TestSubscriberGetsACopy(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Subscribe(SubscriberFunc("mutator", func(_ context.Context, evt *types.AttackEvent) error {
		evt.SourceIP = "mutated"
		return nil
	}))

	sub := newChanSubscriber()
	e.Subscribe(sub)

	e.submit(t.Context(), testEvent("10.0.0.2", types.SeverityLow))

	assert.Equal(t, "10.0.0.2", sub.next(t).SourceIP)
}

func TestHungSubscriberDoesNotStallPersistence(t *testing.T) {
	e, store := newTestEngineWith(t, func(o *Options) {
		o.DispatchQueueSize = 4
	})

	release := make(chan struct{})
	// registered after the engine cleanup, so it runs first and lets Shutdown finish
	t.Cleanup(func() { close(release) })

	e.Subscribe(SubscriberFunc("hung", func(_ context.Context, _ *types.AttackEvent) error {
		<-release
		return nil
	}))

	const total = 20

	done := make(chan struct{})

	go func() {
		defer close(done)

		for range total {
			e.submit(t.Context(), testEvent("10.0.0.9", types.SeverityLow))
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		require.FailNow(t, "submit blocked behind a hung subscriber")
	}

	stats, err := store.Statistics(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(total), stats.TotalAttacks)
}

func TestPersistFailureIsNotDispatched(t *testing.T) {
	e, store := newTestEngine(t)

	sub := newChanSubscriber()
	e.Subscribe(sub)

	require.NoError(t, store.Close())

	e.submit(t.Context(), testEvent("10.0.0.3", types.SeverityHigh))

	select {
	case <-sub.events:
		require.FailNow(t, "event dispatched without being persisted")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestThreatLevelEscalation(t *testing.T) {
	e, _ := newTestEngine(t)

	for i := range 5 {
		e.submit(t.Context(), testEvent("10.0.0.4", types.SeverityLow))

		want := types.ThreatLow
		if i == 4 {
			want = types.ThreatMedium
		}

		rec := e.IPRecord(t.Context(), "10.0.0.4")
		require.NotNil(t, rec)
		assert.Equal(t, want, rec.ThreatLevel, "after %d events", i+1)
	}

	assert.Nil(t, e.IPRecord(t.Context(), "192.0.2.1"))
}

type resettable struct {
	*chanSubscriber
	resets int
}

func (r *resettable) Reset() error {
	r.resets++
	return nil
}

func TestClearAll(t *testing.T) {
	e, _ := newTestEngine(t)

	sub := &resettable{chanSubscriber: newChanSubscriber()}
	e.Subscribe(sub)

	e.submit(t.Context(), testEvent("10.0.0.5", types.SeverityHigh))
	sub.next(t)

	require.NoError(t, e.ClearAll(t.Context()))
	assert.Equal(t, 1, sub.resets)

	stats := e.Statistics(t.Context())
	assert.Zero(t, stats.TotalAttacks)
	assert.Zero(t, stats.UniqueIPs)
	assert.Zero(t, stats.PendingAlerts)
	assert.Empty(t, e.RecentEvents(t.Context(), 10))
	assert.Empty(t, e.Alerts(t.Context(), 10))
}

func TestAcknowledgeAndDelete(t *testing.T) {
	e, _ := newTestEngine(t)

	sub := newChanSubscriber()
	e.Subscribe(sub)

	e.submit(t.Context(), testEvent("10.0.0.6", types.SeverityHigh))
	evt := sub.next(t)

	alerts := e.Alerts(t.Context(), 10)
	require.Len(t, alerts, 1)

	found, err := e.AcknowledgeAlert(t.Context(), alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, e.Alerts(t.Context(), 10))

	found, err = e.AcknowledgeAlert(t.Context(), 9999)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = e.DeleteEvent(t.Context(), evt.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Nil(t, e.Event(t.Context(), evt.ID))

	found, err = e.DeleteEvent(t.Context(), evt.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueriesDegradeToEmpty(t *testing.T) {
	e, store := newTestEngine(t)

	require.NoError(t, store.Close())

	assert.NotNil(t, e.RecentEvents(t.Context(), 10))
	assert.Empty(t, e.RecentEvents(t.Context(), 10))
	assert.Empty(t, e.Alerts(t.Context(), 10))
	assert.Empty(t, e.IPRecords(t.Context(), 10))
	assert.Empty(t, e.EventsBySource(t.Context(), "10.0.0.1", 10))

	stats := e.Statistics(t.Context())
	require.NotNil(t, stats)
	assert.Zero(t, stats.TotalAttacks)
	assert.NotNil(t, stats.ByType)

	out, err := e.ExportAll(t.Context(), database.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(out))
}

func TestExportUnknownFormat(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.ExportAll(t.Context(), "xml")
	require.ErrorIs(t, err, database.ErrUnknownFormat)
}

type closingSubscriber struct {
	*chanSubscriber
	closed atomic.Bool
}

func (c *closingSubscriber) Close() error {
	c.closed.Store(true)
	return nil
}

func TestShutdownDrainsQueue(t *testing.T) {
	e, _ := newTestEngine(t)

	release := make(chan struct{})

	var delivered atomic.Int32

	e.Subscribe(SubscriberFunc("slow", func(context.Context, *types.AttackEvent) error {
		<-release
		delivered.Add(1)

		return nil
	}))

	closer := &closingSubscriber{chanSubscriber: newChanSubscriber()}
	e.Subscribe(closer)

	require.NoError(t, e.Start(t.Context(), []int{0}, true))

	for i := range 3 {
		e.submit(t.Context(), testEvent(fmt.Sprintf("10.0.2.%d", i), types.SeverityLow))
	}

	close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, e.Shutdown(ctx))

	assert.Equal(t, int32(3), delivered.Load())
	assert.True(t, closer.closed.Load())
	assert.False(t, e.Running())
}
