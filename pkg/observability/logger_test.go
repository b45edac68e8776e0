package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.Info("deal stage changed")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "deal stage changed", entry["msg"])

	logger.Warn("slow")
	assert.Equal(t, "warning", lastEntry(t, &buf)["level"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("deal_id", "d1").
		WithFields(map[string]interface{}{"target": "WON", "attempt": 2}).
		WithError(errors.New("conflict")).
		Info("transition")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "d1", entry["deal_id"])
	assert.Equal(t, "WON", entry["target"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "conflict", entry["error"])
}

func TestLogger_WithNilError(t *testing.T) {
	logger := NopLogger()
	assert.Same(t, logger, logger.WithError(nil))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		" INFO ":  InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"verbose": InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
	assert.Equal(t, "WARN", WarnLevel.String())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetActor(ctx))

	var buf bytes.Buffer
	ctx = WithLogger(ctx, NewLogger(InfoLevel, &buf))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithActor(ctx, "am-7")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "am-7", GetActor(ctx))

	FromContext(ctx).Info("reminder sent")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "am-7", entry["actor"])
	assert.NotContains(t, entry, "trace_id")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogger_Writer(t *testing.T) {
	out := &lockedBuffer{}
	logger := NewLogger(InfoLevel, out).WithField("server", "api")

	w := logger.Writer()
	log.New(w, "", 0).Print("http: TLS handshake error from 10.0.0.1")

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "TLS handshake error")
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Close())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "api", entry["server"])
}
