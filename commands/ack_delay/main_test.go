//go:build !wasm

package main

import (
	"testing"

	"github.com/andrei-cloud/go_protoop/pkg/pluginsdk"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/stretchr/testify/assert"
)

type frame struct {
	pluginsdk.Host

	inputs  []uint64
	outputs map[uint32]uint64
	printed [][]uint64
}

func (f *frame) Input(i uint32) uint64        { return f.inputs[i] }
func (f *frame) SetOutput(i uint32, v uint64) { f.outputs[i] = v }

func (f *frame) Run(op uint32, args, _ []uint64) uint64 {
	if protoop.Opcode(op) == protoop.OpPrintf {
		f.printed = append(f.printed, append([]uint64(nil), args...))
	}

	return 0
}

func TestAckDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rtt   int64
		first bool
		want  int64
	}{
		{"below floor", 400, false, minAckDelay},
		{"quarter of rtt", 20000, false, 5000},
		{"capped", 100000, false, maxAckDelay},
		{"first estimate not capped", 100000, true, 25000},
		{"first estimate floored", 0, true, minAckDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ackDelay(tt.rtt, tt.first))
		})
	}
}

func TestUpdateAckDelay(t *testing.T) {
	f := &frame{inputs: []uint64{0, 0, 20000, 0}, outputs: map[uint32]uint64{}}
	prev := pluginsdk.SetHost(f)
	t.Cleanup(func() { pluginsdk.SetHost(prev) })

	assert.Zero(t, UpdateAckDelay())
	assert.Equal(t, uint64(5000), f.outputs[0])
	assert.Equal(t, [][]uint64{{20000, 5000}}, f.printed)
}
