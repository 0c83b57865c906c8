package plugins

import (
	"context"
	"fmt"

	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/tetratelabs/wazero/api"
)

// readMemory safely reads bytes from WASM module memory.
func readMemory(mod api.Module, ptr, size uint32) ([]byte, error) {
	if mod == nil {
		return nil, fmt.Errorf("nil module")
	}

	memory := mod.Memory()
	if memory == nil {
		return nil, fmt.Errorf("no memory exported")
	}

	data, ok := memory.Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("failed to read memory at %d[%d]", ptr, size)
	}

	return data, nil
}

// readWords decodes n little-endian 64-bit words starting at ptr. Handle
// words turn back into the references they stand for.
func readWords(mod api.Module, c *connection.Conn, ptr, n uint32) ([]protoop.Value, error) {
	if n > protoop.MaxArgs {
		return nil, errorcodes.ErrTooManyArgs
	}

	out := make([]protoop.Value, n)
	for i := range out {
		w, ok := mod.Memory().ReadUint64Le(ptr + uint32(i)*8)
		if !ok {
			return nil, fmt.Errorf("failed to read word %d at %d", i, ptr)
		}
		out[i] = c.Value(w)
	}

	return out, nil
}

// writeWords flattens values into little-endian words starting at ptr.
func writeWords(mod api.Module, c *connection.Conn, ptr uint32, values []protoop.Value) error {
	for i, v := range values {
		if !mod.Memory().WriteUint64Le(ptr+uint32(i)*8, c.Word(v)) {
			return fmt.Errorf("failed to write word %d at %d", i, ptr)
		}
	}

	return nil
}

type faultKey struct{}

// fault records the first error raised by a host function during one guest
// call, since wazero reports host panics as opaque traps.
type fault struct {
	err error
}

func withFault(ctx context.Context) (context.Context, *fault) {
	f := &fault{}
	return context.WithValue(ctx, faultKey{}, f), f
}

// take returns and clears the recorded error.
func (f *fault) take() error {
	err := f.err
	f.err = nil

	return err
}

// trap aborts the running guest call with err.
func trap(ctx context.Context, err error) {
	if f, ok := ctx.Value(faultKey{}).(*fault); ok && f.err == nil {
		f.err = err
	}
	panic(err)
}
