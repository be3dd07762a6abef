package auth_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-portal-auth"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestZerologLoggerFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := auth.NewZerologLogger(zerolog.New(buf)).Named("auth:test")

	logger.Info("login rejected", "email", "pat@example.com", "attempts", 3)
	logger.Warn("odd", "dangling")
	logger.Error("failed %s after %d tries", "verify", 2)
	logger.Debug("plain message")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "login rejected", lines[0]["message"])
	assert.Equal(t, "auth:test", lines[0]["component"])
	assert.Equal(t, "pat@example.com", lines[0]["email"])
	assert.Equal(t, float64(3), lines[0]["attempts"])

	assert.Equal(t, "warn", lines[1]["level"])
	assert.Contains(t, lines[1], "dangling")

	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "failed verify after 2 tries", lines[2]["message"])

	assert.Equal(t, "debug", lines[3]["level"])
	assert.Equal(t, "plain message", lines[3]["message"])
}

func TestZerologLoggerLiteralPercent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := auth.NewZerologLogger(zerolog.New(buf))

	logger.Info("quota 50% done", "account_id", "acc-1")
	logger.Info("rate 100%% of %d", "account_id", "acc-2")
	logger.Info("%d%% of %s", 80, "quota")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "quota 50% done", lines[0]["message"])
	assert.Equal(t, "acc-1", lines[0]["account_id"])

	assert.Equal(t, "rate 100%% of %d", lines[1]["message"])
	assert.Equal(t, "acc-2", lines[1]["account_id"])

	assert.Equal(t, "80% of quota", lines[2]["message"])
}

func TestZerologLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := auth.NewZerologLogger(zerolog.New(buf).Level(zerolog.WarnLevel))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}
