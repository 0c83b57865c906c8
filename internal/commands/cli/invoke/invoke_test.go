package invoke

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/andrei-cloud/go_protoop/internal/plugins"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPrintsResultAndOutputs(t *testing.T) {
	pm, err := plugins.NewManager(context.Background(), plugins.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })
	require.NoError(t, pm.LoadAll(filepath.Join("..", "..", "..", "..", "commands")))

	var buf bytes.Buffer
	err = run(context.Background(), &buf, pm, protoop.OpNotifyRecoveredFrame,
		[]protoop.Value{protoop.Int(4), protoop.Bool(true)}, 1)
	require.NoError(t, err)

	assert.Equal(t, "notify_recovered_frame -> int(0)\n  output[0] = undefined\n", buf.String())

	err = run(context.Background(), &buf, pm, protoop.OpSkipFrame, nil, 0)
	assert.Error(t, err)
}

func TestOpsCommand(t *testing.T) {
	cmd := NewOpsCommand()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	require.NoError(t, cmd.RunE(cmd, nil))

	assert.Contains(t, buf.String(), "finalize_and_protect_packet")
}

func TestInvokeCommandOutputsFlagIsPerCommand(t *testing.T) {
	first := NewInvokeCommand()
	require.NoError(t, first.Flags().Set("outputs", "3"))

	second := NewInvokeCommand()

	n, err := first.Flags().GetInt("outputs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = second.Flags().GetInt("outputs")
	require.NoError(t, err)
	assert.Zero(t, n)
}
