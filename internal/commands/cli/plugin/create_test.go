package plugin

import (
	"testing"

	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaffoldWASM(t *testing.T) {
	files, err := scaffold("tlp", plugin.RuntimeWASM, []string{"set_next_wake_time", "0x205"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	m, err := plugin.ParseManifest(files["tlp.toml"])
	require.NoError(t, err)
	require.Len(t, m.Protoops, 2)
	assert.Equal(t, protoop.OpPrepareMaxDataFrame, m.Protoops[1].Opcode)

	src := files["main.go"]
	assert.Contains(t, src, "//export set_next_wake_time\nfunc SetNextWakeTime() uint64")
	assert.Contains(t, src, "//export prepare_max_data_frame")
}

func TestScaffoldLua(t *testing.T) {
	files, err := scaffold("watch", plugin.RuntimeLua, []string{"update_rtt"})
	require.NoError(t, err)

	assert.Contains(t, files["watch.lua"], "function update_rtt()")
}

func TestScaffoldRejectsUnknownOpcode(t *testing.T) {
	_, err := scaffold("x", plugin.RuntimeWASM, []string{"nope"})
	assert.Error(t, err)

	_, err = scaffold("x", plugin.Runtime("python"), []string{"noop"})
	assert.ErrorIs(t, err, plugin.ErrInvalidManifest)
}
