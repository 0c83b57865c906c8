package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	return &buf
}

func TestInitLoggerLevel(t *testing.T) {
	prev, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		log.Logger = prevLogger
	})

	InitLogger(true, false)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	InitLogger(false, true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLogResponseLevels(t *testing.T) {
	buf := capture(t)

	LogRequest("127.0.0.1", "update_ack_delay", []string{"int(1)"}, 1, 2)
	LogResponse("127.0.0.1", "update_ack_delay", "int(0)", "", time.Millisecond, 2)
	LogResponse("127.0.0.1", "skip_frame", "undefined", "E4", time.Millisecond, 1)

	dec := json.NewDecoder(buf)
	var entries []map[string]any
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 3)

	assert.Equal(t, "request_received", entries[0]["event"])
	assert.Equal(t, []any{"int(1)"}, entries[0]["inputs"])
	assert.Equal(t, "info", entries[1]["level"])
	assert.Equal(t, "warn", entries[2]["level"])
	assert.Equal(t, "E4", entries[2]["error_code"])
}
