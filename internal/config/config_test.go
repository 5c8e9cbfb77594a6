package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logger:
  active: true
  level: debug
  encoding: json
  mode: stdout

node:
  host: 127.0.0.1
  port: 5000

dht:
  bootstrap:
    mode: static
    peers: ["127.0.0.1:5001", "127.0.0.1:5002"]
  gossip:
    interval: 200ms
  timeout:
    connect: 2s
    read: 3s

telemetry:
  tracing:
    enabled: true
    exporter: stdout
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateConfig())

	require.True(t, cfg.Logger.Active)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "127.0.0.1", cfg.Node.Host)
	require.Equal(t, 5000, cfg.Node.Port)
	require.Equal(t, "static", cfg.DHT.Bootstrap.Mode)
	require.Equal(t, []string{"127.0.0.1:5001", "127.0.0.1:5002"}, cfg.DHT.Bootstrap.Peers)
	require.Equal(t, 200*time.Millisecond, cfg.DHT.Gossip.Interval.Std())
	require.Equal(t, 2*time.Second, cfg.DHT.Timeout.Connect.Std())
	require.True(t, cfg.Telemetry.Tracing.Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	cfg.Logger.Level = "loud"
	cfg.DHT.Bootstrap.Mode = "multicast"
	cfg.DHT.Bootstrap.Peers = []string{"no-port"}
	cfg.Node.Port = 70000

	err = cfg.ValidateConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "logger.level")
	require.Contains(t, err.Error(), "bootstrap.mode")
	require.Contains(t, err.Error(), "node.port")
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	t.Setenv("NODE_PORT", "6000")
	t.Setenv("BOOTSTRAP_PEERS", "10.0.0.1:4000, 10.0.0.2:4000")
	t.Setenv("GOSSIP_INTERVAL", "1s")
	t.Setenv("LOGGER_ENABLED", "false")

	cfg.ApplyEnvOverrides()
	require.Equal(t, 6000, cfg.Node.Port)
	require.Equal(t, []string{"10.0.0.1:4000", "10.0.0.2:4000"}, cfg.DHT.Bootstrap.Peers)
	require.Equal(t, time.Second, cfg.DHT.Gossip.Interval.Std())
	require.False(t, cfg.Logger.Active)
}
