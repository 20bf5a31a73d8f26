package outputs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/segmentio/kafka-go"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsecurity/go-cs-lib/ptr"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/types"
)

func sampleEvent(id int64, sev types.Severity) *types.AttackEvent {
	return &types.AttackEvent{
		ID:            id,
		Timestamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Type:          types.SQLInjection,
		SourceIP:      "198.51.100.7",
		SourcePort:    41000,
		TargetPort:    8000,
		SimulatedPort: 80,
		Service:       "HTTP",
		Payload:       "GET /?id=1 UNION SELECT * FROM users",
		PayloadSize:   36,
		Severity:      sev,
		UserAgent:     "sqlmap/1.7",
		ConnectionID:  uint64(id),
	}
}

func readLines(t *testing.T, path string) []types.AttackEvent {
	t.Helper()

	fd, err := os.Open(path)
	require.NoError(t, err)

	defer fd.Close()

	var ret []types.AttackEvent

	sc := bufio.NewScanner(fd)
	for sc.Scan() {
		var evt types.AttackEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &evt))
		ret = append(ret, evt)
	}

	require.NoError(t, sc.Err())

	return ret
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "attacks.jsonl")

	out, err := NewFileOutput(&csconfig.FileOutputCfg{
		Enabled:  ptr.Of(true),
		Path:     path,
		MaxSize:  10,
		MaxFiles: 2,
		MaxAge:   1,
		Compress: ptr.Of(false),
	})
	require.NoError(t, err)

	defer out.Close()

	assert.Equal(t, "log_file", out.Name())

	for i := range 3 {
		require.NoError(t, out.OnEvent(t.Context(), sampleEvent(int64(i+1), types.SeverityHigh)))
	}

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, int64(1), lines[0].ID)
	assert.Equal(t, types.SQLInjection, lines[2].Type)
	assert.Equal(t, "198.51.100.7", lines[2].SourceIP)

	require.NoError(t, out.Reset())
	assert.Empty(t, readLines(t, path))

	// writes continue after a reset
	require.NoError(t, out.OnEvent(t.Context(), sampleEvent(4, types.SeverityLow)))

	lines = readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(4), lines[0].ID)
}

func TestFileOutputResetWithoutFile(t *testing.T) {
	out, err := NewFileOutput(&csconfig.FileOutputCfg{Path: filepath.Join(t.TempDir(), "attacks.jsonl")})
	require.NoError(t, err)

	require.NoError(t, out.Reset())
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.msgs = append(f.msgs, msgs...)

	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaOutput(t *testing.T) {
	out := NewKafkaOutput(&csconfig.KafkaOutputCfg{
		Brokers:              []string{"127.0.0.1:9092"},
		Topic:                "attacks",
		BatchSize:            10,
		BatchTimeoutDuration: time.Second,
		WriteTimeoutDuration: time.Second,
	}, nil)

	w, ok := out.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "attacks", w.Topic)
	assert.True(t, w.Async)

	fake := &fakeWriter{}
	out.writer = fake

	evt := sampleEvent(7, types.SeverityHigh)
	require.NoError(t, out.OnEvent(t.Context(), evt))

	require.Len(t, fake.msgs, 1)

	msg := fake.msgs[0]
	assert.Equal(t, "198.51.100.7", string(msg.Key))
	assert.Equal(t, evt.Timestamp, msg.Time)

	var decoded types.AttackEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, *evt, decoded)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	assert.Equal(t, map[string]string{"type": "sql_injection", "severity": "high", "target_port": "8000"}, headers)

	fake.err = errors.New("broker down")
	require.ErrorContains(t, out.OnEvent(t.Context(), evt), "broker down")

	out.completion([]kafka.Message{msg}, errors.New("async failure"))

	require.NoError(t, out.Close())
	assert.True(t, fake.closed)
}

func slackServer(t *testing.T, status int) (*httptest.Server, chan slack.WebhookMessage) {
	t.Helper()

	received := make(chan slack.WebhookMessage, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var msg slack.WebhookMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		received <- msg

		w.WriteHeader(status)
	}))

	t.Cleanup(srv.Close)

	return srv, received
}

func TestSlackOutput(t *testing.T) {
	srv, received := slackServer(t, http.StatusOK)

	out := NewSlackOutput(&csconfig.SlackOutputCfg{
		Webhook:         srv.URL,
		Channel:         "#honeypot",
		Username:        "sentinel",
		IconEmoji:       ":rotating_light:",
		MinSeverity:     "high",
		TimeoutDuration: 5 * time.Second,
	})

	assert.Equal(t, "slack", out.Name())

	// below the threshold, nothing is posted
	require.NoError(t, out.OnEvent(t.Context(), sampleEvent(1, types.SeverityMedium)))
	assert.Empty(t, received)

	require.NoError(t, out.OnEvent(t.Context(), sampleEvent(2, types.SeverityHigh)))

	msg := <-received
	assert.Equal(t, "High severity attack from 198.51.100.7", msg.Text)
	assert.Equal(t, "#honeypot", msg.Channel)
	assert.Equal(t, "sentinel", msg.Username)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Equal(t, "event #2", msg.Attachments[0].Footer)

	titles := []string{}
	for _, f := range msg.Attachments[0].Fields {
		titles = append(titles, f.Title)
	}

	assert.Equal(t, []string{"Type", "Service", "Source", "Port", "User-Agent", "Payload"}, titles)
}

func TestSlackOutputLowThreshold(t *testing.T) {
	srv, received := slackServer(t, http.StatusOK)

	out := NewSlackOutput(&csconfig.SlackOutputCfg{Webhook: srv.URL, MinSeverity: "low"})

	evt := sampleEvent(3, types.SeverityLow)
	evt.Payload = ""
	evt.UserAgent = ""

	require.NoError(t, out.OnEvent(t.Context(), evt))

	msg := <-received
	assert.Equal(t, "Low severity attack from 198.51.100.7", msg.Text)
	assert.Len(t, msg.Attachments[0].Fields, 4)
}

func TestSlackOutputError(t *testing.T) {
	srv, _ := slackServer(t, http.StatusInternalServerError)

	out := NewSlackOutput(&csconfig.SlackOutputCfg{Webhook: srv.URL, MinSeverity: "high"})

	err := out.OnEvent(t.Context(), sampleEvent(4, types.SeverityHigh))
	require.ErrorContains(t, err, "slack webhook")
}

func TestSlackOutputRateLimit(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const webhook = "https://hooks.slack.invalid/services/T0/B0/X"

	httpmock.RegisterResponder(http.MethodPost, webhook, httpmock.NewStringResponder(http.StatusOK, "ok"))

	out := NewSlackOutput(&csconfig.SlackOutputCfg{
		Webhook:      webhook,
		MinSeverity:  "high",
		MaxPerMinute: ptr.Of(2),
	})

	for i := range 5 {
		require.NoError(t, out.OnEvent(t.Context(), sampleEvent(int64(i+1), types.SeverityHigh)))
	}

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}
