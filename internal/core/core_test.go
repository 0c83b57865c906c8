package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/helpers"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintfLogsCaller(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := connection.New(NewTable())
	c.SetLogger(zerolog.New(&buf))

	p := plugin.NewContext("ack_delay", arena.New(64))
	require.NoError(t, c.Table().Bind(protoop.OpUpdateAckDelay, plugin.AnchorReplace, connection.Impl{
		Owner: p,
		Fn: func(c *connection.Conn, _ *connection.Call) (protoop.Value, error) {
			return protoop.Int(0), helpers.Printf(c, protoop.Uint(4000))
		},
	}))

	require.NoError(t, helpers.UpdateAckDelay(c, nil, nil, 0, false))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "protoop_printf", entry["event"])
	assert.Equal(t, "ack_delay", entry["plugin"])
	assert.Equal(t, []any{"int(4000)"}, entry["args"])
	assert.Equal(t, c.ID().String(), entry["cnx"])
}

func TestNoop(t *testing.T) {
	t.Parallel()

	c := connection.New(NewTable())
	res, err := c.Invoke(protoop.OpNoop, []protoop.Value{protoop.Int(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Int())

	assert.Equal(t, []protoop.Opcode{protoop.OpPrintf, protoop.OpNoop}, c.Table().Opcodes())
}
