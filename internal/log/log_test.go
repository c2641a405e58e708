package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	handler := NewRedactingHandler(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return slog.New(handler), buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferedLogger(t)
	logger.Info("token committed",
		slog.String("session", "sess-1"),
		slog.String("token", "super-secret"),
		slog.String("credential_proof", "123456"))

	entry := lastLine(t, buf)
	require.Equal(t, "sess-1", entry["session"])
	require.Equal(t, "[REDACTED]", entry["token"])
	require.Equal(t, "[REDACTED]", entry["credential_proof"])
	require.NotContains(t, buf.String(), "super-secret")
}

func TestRedactionIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferedLogger(t)
	logger.Info("msg", slog.String("Token", "secret"), slog.String("PIN", "0000"))

	entry := lastLine(t, buf)
	require.Equal(t, "[REDACTED]", entry["Token"])
	require.Equal(t, "[REDACTED]", entry["PIN"])
}

func TestGroupedAttrsRedacted(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferedLogger(t)
	logger.Info("msg", slog.Group("auth",
		slog.String("hat", "opaque-bytes"),
		slog.String("sensor", "face")))

	entry := lastLine(t, buf)
	group, ok := entry["auth"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "[REDACTED]", group["hat"])
	require.Equal(t, "face", group["sensor"])
}

func TestWithAttrsRedacted(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferedLogger(t)
	logger.With(slog.String("password", "hunter2")).Info("msg")

	entry := lastLine(t, buf)
	require.Equal(t, "[REDACTED]", entry["password"])
	require.NotContains(t, buf.String(), "hunter2")
}

func TestNonSensitiveFieldsPassThrough(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferedLogger(t)
	logger.Info("msg", slog.Int("sensor", 3), slog.Bool("crypto_bound", true))

	entry := lastLine(t, buf)
	require.Equal(t, float64(3), entry["sensor"])
	require.Equal(t, true, entry["crypto_bound"])
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	logger, closer, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	require.Nil(t, closer)
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, _, err := New(Options{Level: "verbose"})
	require.Error(t, err)
}

func TestNewLoggerWithFileReturnsCloser(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "argus.log")
	logger, closer, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer func() { require.NoError(t, closer.Close()) }()

	logger.Info("rotating sink up")
}
