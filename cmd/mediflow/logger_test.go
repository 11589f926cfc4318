// ABOUTME: Tests for CLI logger setup and the color handler
// ABOUTME: Checks level filtering, attribute rendering, and JSON output

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mediflow/internal/config"
)

func TestSetupLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "dispatch").WithGroup("req").Info("reply recorded", "id", "d-1")
	logger.Warn("careful", slog.Group("usage", "used", 3))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF reply recorded component=dispatch req.id=d-1")
	assert.Contains(t, out, "WRN careful usage.used=3")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "component", "api")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "api", line["component"])
	assert.Equal(t, "DEBUG", line["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestGetConfigPath(t *testing.T) {
	path, explicit := getConfigPath("/etc/mediflow.toml")
	assert.Equal(t, "/etc/mediflow.toml", path)
	assert.True(t, explicit)

	t.Setenv("MEDIFLOW_CONFIG", "/tmp/from-env.yaml")
	path, explicit = getConfigPath("")
	assert.Equal(t, "/tmp/from-env.yaml", path)
	assert.True(t, explicit)

	t.Setenv("MEDIFLOW_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, explicit = getConfigPath("")
	assert.Equal(t, "/xdg/mediflow/config.yaml", path)
	assert.False(t, explicit)
}

func TestLoadConfig_DefaultsFromEnv(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	missing := t.TempDir() + "/nope.yaml"

	t.Setenv("MEDIFLOW_ENCRYPTION_KEY", "")
	_, err := loadConfig(missing, false)
	require.Error(t, err)

	t.Setenv("MEDIFLOW_ENCRYPTION_KEY", "from-env")
	cfg, err := loadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Credentials.EncryptionKey)

	_, err = loadConfig(missing, true)
	assert.Error(t, err, "an explicit path must exist")
}
