package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsecurity/go-cs-lib/cstest"

	"github.com/sentinelhq/sentinel/pkg/engine"
	"github.com/sentinelhq/sentinel/pkg/metrics"
	"github.com/sentinelhq/sentinel/pkg/types"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		argv        []string
		want        Flags
		expectedErr string
	}{
		{
			name: "defaults",
			argv: nil,
			want: Flags{ConfigFile: defaultConfigPath},
		},
		{
			name: "config and level",
			argv: []string{"-c", "/tmp/x.yaml", "-debug", "-warning"},
			want: Flags{ConfigFile: "/tmp/x.yaml", LogLevel: log.DebugLevel},
		},
		{
			name: "ports",
			argv: []string{"-ports", "22, 80", "-ports", "443", "-no-api", "-no-autostart"},
			want: Flags{
				ConfigFile:  defaultConfigPath,
				Ports:       portList{22, 80, 443},
				DisableAPI:  true,
				NoAutoStart: true,
			},
		},
		{
			name:        "bad port",
			argv:        []string{"-ports", "22,http"},
			expectedErr: "invalid port 'http'",
		},
		{
			name:        "out of range",
			argv:        []string{"-ports", "70000"},
			expectedErr: "invalid port '70000'",
		},
		{
			name:        "extra argument",
			argv:        []string{"-t", "serve"},
			expectedErr: "unexpected argument 'serve'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFlags(tc.argv, io.Discard)
			cstest.RequireErrorContains(t, err, tc.expectedErr)

			if tc.expectedErr != "" {
				return
			}

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPortListString(t *testing.T) {
	p := portList{22, 8080}
	assert.Equal(t, "22,8080", p.String())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()

	path := writeConfig(t, `
common:
  log_dir: `+dir+`
  data_dir: `+dir+`
honeypot:
  ports: [22, 80]
`)

	cfg, err := LoadConfig(path, Flags{
		LogLevel:    log.TraceLevel,
		DisableAPI:  true,
		NoAutoStart: true,
		Ports:       portList{2222},
	})
	require.NoError(t, err)

	assert.Equal(t, log.TraceLevel, cfg.Common.Level)
	assert.Equal(t, log.TraceLevel, cfg.API.Level)
	assert.False(t, *cfg.API.Enabled)
	assert.False(t, *cfg.Honeypot.AutoStart)
	assert.Equal(t, []int{2222}, cfg.Honeypot.Ports)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), Flags{})
	cstest.RequireErrorContains(t, err, "failed to read config file")
}

func TestNewRegistry(t *testing.T) {
	reg, err := newRegistry(metrics.MetricsLevelNone)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	_, err = newRegistry("verbose")
	require.ErrorIs(t, err, metrics.ErrInvalidMetricsLevel)
}

func TestServeUntilCancelled(t *testing.T) {
	dir := t.TempDir()

	path := writeConfig(t, `
common:
  log_dir: `+dir+`
  data_dir: `+dir+`
honeypot:
  auto_start: false
api:
  listen_uri: 127.0.0.1:0
`)

	cfg, err := LoadConfig(path, Flags{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- Serve(ctx, cfg)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.FileExists(t, cfg.DbConfig.DbPath)
}

func TestServeAPIBindFailure(t *testing.T) {
	dir := t.TempDir()

	path := writeConfig(t, `
common:
  log_dir: `+dir+`
  data_dir: `+dir+`
honeypot:
  auto_start: false
api:
  listen_uri: 256.0.0.1:1
`)

	cfg, err := LoadConfig(path, Flags{})
	require.NoError(t, err)

	err = Serve(context.Background(), cfg)
	cstest.RequireErrorContains(t, err, "listening on 256.0.0.1:1")
}

type closingSubscriber struct {
	name   string
	closed int
	err    error
}

func (c *closingSubscriber) Name() string { return c.name }

func (*closingSubscriber) OnEvent(context.Context, *types.AttackEvent) error { return nil }

func (c *closingSubscriber) Close() error {
	c.closed++
	return c.err
}

func TestCloseSubscribers(t *testing.T) {
	first := &closingSubscriber{name: "geoip"}
	failing := &closingSubscriber{name: "broken", err: errors.New("already closed")}
	plain := engine.SubscriberFunc("plain", func(context.Context, *types.AttackEvent) error { return nil })

	closeSubscribers([]engine.Subscriber{first, plain, failing})

	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, failing.closed)
}

func TestBuildSubscribersAttackLogFailure(t *testing.T) {
	dir := t.TempDir()

	// a regular file where the log directory should be
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	path := writeConfig(t, `
common:
  log_dir: `+dir+`
  data_dir: `+dir+`
outputs:
  log_file:
    enabled: true
    path: `+filepath.Join(blocker, "attacks.json")+`
`)

	cfg, err := LoadConfig(path, Flags{})
	require.NoError(t, err)

	subs, err := buildSubscribers(cfg, nil)
	cstest.RequireErrorContains(t, err, "attack log:")
	assert.Nil(t, subs)
}
