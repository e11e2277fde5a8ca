package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "radiomem.yaml")
	content := `
log:
  level: debug
  log_path: /tmp/radiomem.log
serial:
  port: /dev/ttyUSB0
  baud: 19200
  timeout: 250ms
models:
  dir: ./models
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	cfg, v, err := Load(file)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/radiomem.log", cfg.Log.LogPath)
	assert.Equal(t, 10, cfg.Log.MaxSize, "defaults fill unset keys")
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.Timeout)
	assert.Equal(t, "./models", cfg.Models.Dir)
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, time.Second, cfg.Serial.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RADIOMEM_SERIAL_PORT", "/dev/ttyACM3")
	t.Setenv("RADIOMEM_STORE_PATH", "/var/lib/radiomem.db")
	t.Setenv("RADIOMEM_METRICS_LISTEN", ":9109")

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")

	file := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(file, []byte("serial:\n  port: /dev/ttyUSB0\n"), 0o644))
	cfg, _, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.Port)
	assert.Equal(t, "/var/lib/radiomem.db", cfg.Store.Path)
	assert.Equal(t, ":9109", cfg.Metrics.Listen)
}

func TestInvalidBaud(t *testing.T) {
	file := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(file, []byte("serial:\n  baud: -1\n"), 0o644))
	_, _, err := Load(file)
	assert.ErrorContains(t, err, "baud")
}
