package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsecurity/go-cs-lib/cstest"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type testEnv struct {
	configPath string
	cfg        *csconfig.Config
	highID     int64
}

// newTestEnv writes a configuration and seeds its database with three
// attacks, one of them raising an alert.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := "common:\n  log_dir: " + dir + "\n  data_dir: " + dir + "\ncli:\n  color: \"no\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	cfg, err := csconfig.NewConfig(configPath)
	require.NoError(t, err)

	store, err := database.NewStore(t.Context(), cfg.DbConfig, log.WithField("test", t.Name()))
	require.NoError(t, err)

	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)

	events := []types.AttackEvent{
		{Timestamp: now.Add(-2 * time.Minute), Type: types.BruteForce, SourceIP: "10.0.0.1", SourcePort: 40000, TargetPort: 2222, SimulatedPort: 22, Service: "SSH", Payload: "root", PayloadSize: 4, Severity: types.SeverityMedium},
		{Timestamp: now.Add(-time.Minute), Type: types.SQLInjection, SourceIP: "10.0.0.1", SourcePort: 40001, TargetPort: 8080, SimulatedPort: 80, Service: "HTTP", Payload: "' OR 1=1", PayloadSize: 8, Severity: types.SeverityHigh, UserAgent: "sqlmap/1.7"},
		{Timestamp: now, Type: types.ConnectionAttempt, SourceIP: "10.0.0.2", SourcePort: 40002, TargetPort: 2323, SimulatedPort: 23, Service: "Telnet", Severity: types.SeverityLow},
	}

	env := &testEnv{configPath: configPath, cfg: cfg}

	for i := range events {
		id, err := store.RecordEvent(t.Context(), &events[i])
		require.NoError(t, err)

		if events[i].Severity == types.SeverityHigh {
			env.highID = id
		}
	}

	return env
}

func (env *testEnv) run(t *testing.T, argv ...string) (string, error) {
	t.Helper()

	cmd := newCliRoot().NewCommand()

	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"-c", env.configPath}, argv...))

	err := cmd.ExecuteContext(t.Context())

	return buf.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)

	return v
}

func TestVersion(t *testing.T) {
	env := &testEnv{configPath: filepath.Join(t.TempDir(), "missing.yaml")}

	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "User-Agent: sentinel/")
}

func TestMissingConfig(t *testing.T) {
	env := &testEnv{configPath: filepath.Join(t.TempDir(), "missing.yaml")}

	_, err := env.run(t, "stats")
	cstest.RequireErrorContains(t, err, "failed to read config file")
}

func TestBadOutputFlag(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "-o", "yaml", "stats")
	cstest.RequireErrorContains(t, err, "output format 'yaml' unknown")
}

func TestNoDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("common:\n  data_dir: "+dir+"\n"), 0o600))

	env := &testEnv{configPath: configPath}

	_, err := env.run(t, "attacks", "list")
	cstest.RequireErrorContains(t, err, "no database at")
	assert.NoFileExists(t, filepath.Join(dir, "sentinel.db"))
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "stats")
	require.NoError(t, err)

	stats := decode[types.Statistics](t, out)
	assert.Equal(t, int64(3), stats.TotalAttacks)
	assert.Equal(t, int64(2), stats.UniqueIPs)
	assert.Equal(t, int64(1), stats.PendingAlerts)
	assert.Equal(t, int64(1), stats.ByType["sql_injection"])

	out, err = env.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total attacks  : 3")
	assert.Contains(t, out, "sql_injection")
}

func TestAttacksList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "attacks", "list")
	require.NoError(t, err)

	events := decode[[]types.AttackEvent](t, out)
	require.Len(t, events, 3)
	assert.Equal(t, "10.0.0.2", events[0].SourceIP)

	out, err = env.run(t, "-o", "json", "attacks", "list", "--ip", "10.0.0.1", "-n", "1")
	require.NoError(t, err)

	events = decode[[]types.AttackEvent](t, out)
	require.Len(t, events, 1)
	assert.Equal(t, types.SQLInjection, events[0].Type)

	out, err = env.run(t, "-o", "raw", "attacks", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "id,timestamp,type,source_ip"), out)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)

	out, err = env.run(t, "attacks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.1")
	assert.Contains(t, out, "Telnet")

	out, err = env.run(t, "-o", "json", "attacks", "list", "--ip", "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestAttacksInspect(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "attacks", "inspect", strconv.FormatInt(env.highID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "sqlmap/1.7")
	assert.Contains(t, out, "(simulating 80)")
	assert.Contains(t, out, "' OR 1=1")

	_, err = env.run(t, "attacks", "inspect", "999")
	cstest.RequireErrorContains(t, err, "attack 999 not found")

	_, err = env.run(t, "attacks", "inspect", "abc")
	cstest.RequireErrorContains(t, err, "invalid id 'abc'")

	_, err = env.run(t, "attacks", "inspect")
	cstest.RequireErrorContains(t, err, "accepts 1 arg(s), received 0")
}

func TestAttacksDelete(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "attacks", "delete", strconv.FormatInt(env.highID, 10), "999")
	require.NoError(t, err)

	out, err := env.run(t, "-o", "json", "attacks", "list")
	require.NoError(t, err)

	remaining := decode[[]types.AttackEvent](t, out)
	assert.Len(t, remaining, 2)

	// the alert went with the attack
	out, err = env.run(t, "-o", "json", "alerts", "list")
	require.NoError(t, err)
	assert.Empty(t, decode[[]types.Alert](t, out))

	// ids are checked before anything is deleted
	_, err = env.run(t, "attacks", "delete", strconv.FormatInt(remaining[0].ID, 10), "0")
	cstest.RequireErrorContains(t, err, "invalid id '0'")

	out, err = env.run(t, "-o", "json", "attacks", "list")
	require.NoError(t, err)
	assert.Len(t, decode[[]types.AttackEvent](t, out), 2)

	_, err = env.run(t, "attacks", "delete")
	cstest.RequireErrorContains(t, err, "requires at least one id")
}

func TestAttacksExport(t *testing.T) {
	env := newTestEnv(t)

	file := filepath.Join(t.TempDir(), "attacks.csv")

	_, err := env.run(t, "attacks", "export", "--format", "csv", "--file", file)
	require.NoError(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 4)

	out, err := env.run(t, "attacks", "export")
	require.NoError(t, err)
	assert.Len(t, decode[[]types.AttackEvent](t, out), 3)

	_, err = env.run(t, "attacks", "export", "-f", "xml")
	require.ErrorIs(t, err, database.ErrUnknownFormat)
}

func TestAlerts(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "alerts", "list")
	require.NoError(t, err)

	alerts := decode[[]types.Alert](t, out)
	require.Len(t, alerts, 1)
	assert.Equal(t, env.highID, alerts[0].AttackID)
	assert.Equal(t, "High severity attack from 10.0.0.1", alerts[0].Message)

	out, err = env.run(t, "-o", "raw", "alerts", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "id,timestamp,type,source_ip,severity"), out)

	_, err = env.run(t, "alerts", "ack", strconv.FormatInt(alerts[0].ID, 10))
	require.NoError(t, err)

	out, err = env.run(t, "alerts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending alerts")

	_, err = env.run(t, "alerts", "ack", "4242")
	cstest.RequireErrorContains(t, err, "alert 4242 not found")
}

func TestIPs(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "ips", "list")
	require.NoError(t, err)

	records := decode[[]types.IPRecord](t, out)
	require.Len(t, records, 2)
	assert.Equal(t, "10.0.0.1", records[0].IPAddress)
	assert.Equal(t, int64(2), records[0].TotalAttacks)

	out, err = env.run(t, "-o", "json", "ips", "inspect", "10.0.0.1")
	require.NoError(t, err)

	var detail struct {
		IPAddress  string              `json:"ip_address"`
		Enrichment *types.IPEnrichment `json:"enrichment"`
		Recent     []types.AttackEvent `json:"recent_attacks"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "10.0.0.1", detail.IPAddress)
	assert.Nil(t, detail.Enrichment)
	assert.Len(t, detail.Recent, 2)

	out, err = env.run(t, "ips", "inspect", "10.0.0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent attacks")

	_, err = env.run(t, "ips", "inspect", "192.0.2.1")
	cstest.RequireErrorContains(t, err, "192.0.2.1 has never been seen")

	_, err = env.run(t, "ips", "inspect", "not-an-ip")
	cstest.RequireErrorContains(t, err, "invalid address 'not-an-ip'")
}

func TestClear(t *testing.T) {
	env := newTestEnv(t)

	logPath := env.cfg.Outputs.LogFile.Path
	require.NoError(t, os.WriteFile(logPath, []byte("{}\n"), 0o600))

	_, err := env.run(t, "clear", "--yes")
	require.NoError(t, err)

	out, err := env.run(t, "-o", "json", "stats")
	require.NoError(t, err)
	assert.Zero(t, decode[types.Statistics](t, out).TotalAttacks)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "show", "--key", "honeypot")
	require.NoError(t, err)
	assert.Contains(t, out, "read_timeout: 5s")

	out, err = env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "db_path: "+env.cfg.DbConfig.DbPath)

	_, err = env.run(t, "config", "show", "--key", "nope")
	cstest.RequireErrorContains(t, err, "unknown section 'nope'")
}

func TestTopLevelName(t *testing.T) {
	root := newCliRoot().NewCommand()

	cmd, _, err := root.Find([]string{"attacks", "list"})
	require.NoError(t, err)
	assert.Equal(t, "attacks", topLevelName(cmd))

	cmd, _, err = root.Find([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version", topLevelName(cmd))
}
