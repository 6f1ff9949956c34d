package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveAttributesAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", slog.String("app", "Naggery"))
	logger.Info("login", slog.String("user_id", "u-1"), slog.String("password", "hunter2"), slog.String("Token", "abc"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Naggery", rec["app"])
	assert.Equal(t, "u-1", rec["user_id"])
	assert.Equal(t, redacted, rec["password"])
	assert.Equal(t, redacted, rec["Token"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "shouting")
	logger.Debug("hidden")
	assert.Zero(t, buf.Len())
	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
