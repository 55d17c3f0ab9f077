package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestCorrelationID(t *testing.T) {
	ctx := SetCorrelationID(context.Background(), "cid-1")
	assert.Equal(t, "cid-1", GetCorrelationID(ctx))
	assert.Empty(t, GetCorrelationID(context.Background()))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		out = append(out, line)
	}
	return out
}

func TestHandlerChain(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(maskHandler{
		handler: contextHandler{Handler: slog.NewJSONHandler(&buf, nil), service: "otpgate"},
		masker:  NewMasker([]string{"otp"}, []string{"identity"}),
	})

	ctx := SetCorrelationID(context.Background(), "cid-1")
	logger.InfoContext(ctx, "verify", "otp", "123456", "status", "incorrect")
	logger.With("identity", "user@example.com").InfoContext(ctx, "issue")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "***", lines[0]["otp"])
	assert.Equal(t, "incorrect", lines[0]["status"])
	assert.Equal(t, "cid-1", lines[0]["_cID"])
	assert.Equal(t, "otpgate", lines[0]["service"])
	assert.NotContains(t, lines[0], "trace_id")

	assert.Equal(t, "**************om", lines[1]["identity"])
}

func TestFanout(t *testing.T) {
	var info, errs bytes.Buffer
	logger := slog.New(fanout{
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	})

	logger.Info("one")
	logger.With("k", "v").Error("two")

	assert.Len(t, decodeLines(t, &info), 2)
	lines := decodeLines(t, &errs)
	require.Len(t, lines, 1)
	assert.Equal(t, "v", lines[0]["k"])
}
