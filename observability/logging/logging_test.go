package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerUsesCanonicalKeys(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "propd", Env: "test", Level: "debug"})
	logger.Debug("escrow released", slog.String("escrowId", "ab"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "escrow released", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "propd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWithFileRotation(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "propd.log")
	logger, closer := SetupWithOptions(Options{Service: "propd", File: path})
	logger.Info("started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"started"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskHeaders(t *testing.T) {
	attr := MaskHeaders("headers", map[string]string{"authorization": "Bearer x", "empty": ""})
	masked, ok := attr.Value.Any().(map[string]string)
	require.True(t, ok)
	require.Equal(t, RedactedValue, masked["authorization"])
	require.Equal(t, "", masked["empty"])
}
