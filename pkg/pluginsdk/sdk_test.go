//go:build !wasm

package pluginsdk

import (
	"testing"

	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	inputs  []uint64
	outputs map[uint32]uint64
	memory  []byte
	next    uint32
	freed   []uint32
	calls   []uint32
	logs    []string
}

func (h *fakeHost) Input(i uint32) uint64        { return h.inputs[i] }
func (h *fakeHost) SetOutput(i uint32, v uint64) { h.outputs[i] = v }
func (h *fakeHost) InputCount() uint32           { return uint32(len(h.inputs)) }
func (h *fakeHost) Free(ptr uint32)              { h.freed = append(h.freed, ptr) }
func (h *fakeHost) Log(_ int, msg string)        { h.logs = append(h.logs, msg) }

func (h *fakeHost) Malloc(size uint32) uint32 {
	if h.next+size > uint32(len(h.memory)) {
		return 0
	}
	p := h.next
	h.next += size

	return p
}

func (h *fakeHost) Realloc(ptr, size uint32) uint32 {
	h.Free(ptr)
	return h.Malloc(size)
}

func (h *fakeHost) Run(op uint32, args, outs []uint64) uint64 {
	h.calls = append(h.calls, op)
	for i := range outs {
		outs[i] = args[0] + uint64(i)
	}

	return uint64(len(args))
}

func (h *fakeHost) Bytes(ptr, length uint32) []byte {
	return h.memory[ptr : ptr+length]
}

func install(t *testing.T, h *fakeHost) {
	t.Helper()

	prev := SetHost(h)
	t.Cleanup(func() { SetHost(prev) })
}

func TestCallFrame(t *testing.T) {
	h := &fakeHost{inputs: []uint64{7, 1, uint64(^uint64(0))}, outputs: map[uint32]uint64{}}
	install(t, h)

	assert.Equal(t, 3, InputCount())
	assert.Equal(t, uint64(7), Input(0))
	assert.True(t, InputBool(1))
	assert.Equal(t, int64(-1), InputInt(2))

	SetOutputInt(0, -2)
	SetOutput(1, 9)
	assert.Equal(t, uint64(0xfffffffffffffffe), h.outputs[0])
	assert.Equal(t, uint64(9), h.outputs[1])
}

func TestRun(t *testing.T) {
	h := &fakeHost{outputs: map[uint32]uint64{}}
	install(t, h)

	res, outs := Run(protoop.OpSkipFrame, 2, 40, 2)
	assert.Equal(t, uint64(2), res)
	assert.Equal(t, []uint64{40, 41}, outs)

	Printf(1)
	assert.Equal(t, []uint32{uint32(protoop.OpSkipFrame), uint32(protoop.OpPrintf)}, h.calls)

	assert.Panics(t, func() { Run(protoop.OpNoop, protoop.MaxArgs+1) })
}

func TestMemory(t *testing.T) {
	h := &fakeHost{memory: make([]byte, 16)}
	install(t, h)

	p := Malloc(8)
	copy(Bytes(p, 4), "quic")
	assert.Equal(t, []byte("quic"), h.memory[:4])

	q := Realloc(p, 8)
	require.NotZero(t, q)
	assert.Equal(t, []uint32{p}, h.freed)
	assert.Zero(t, Malloc(8))

	LogInfo("hello")
	assert.Equal(t, []string{"hello"}, h.logs)
}
