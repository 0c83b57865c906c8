package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HostModule is the import module name guests link against.
const HostModule = "env"

// HostFunctions provides the sandbox ABI to WASM plugins. Every function
// resolves its connection from the call context.
type HostFunctions struct {
	builder wazero.HostModuleBuilder
}

// NewHostFunctions creates a new host functions provider.
func NewHostFunctions(runtime wazero.Runtime) *HostFunctions {
	return &HostFunctions{builder: runtime.NewHostModuleBuilder(HostModule)}
}

// Register adds all host functions to the WASM runtime.
func (h *HostFunctions) Register(ctx context.Context) error {
	// Logging functions
	h.export(h.logDebug, "log_debug")
	h.export(h.logInfo, "log_info")
	h.export(h.logError, "log_error")

	// Arena allocator
	h.export(h.malloc, "plugin_malloc")
	h.export(h.free, "plugin_free")
	h.export(h.realloc, "plugin_realloc")

	// Call frame
	h.export(h.getInput, "get_input")
	h.export(h.setOutput, "set_output")
	h.export(h.inputCount, "input_count")

	// Nested invocation
	h.export(h.runProtoop, "run_protoop")

	if _, err := h.builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host functions module: %w", err)
	}

	return nil
}

func (h *HostFunctions) export(fn any, name string) {
	h.builder.NewFunctionBuilder().WithFunc(fn).Export(name)
}

func conn(ctx context.Context, op string) *connection.Conn {
	c, ok := connection.FromContext(ctx)
	if !ok {
		trap(ctx, errorcodes.Violation(op, errorcodes.ErrNoActivePlugin))
	}

	return c
}

func current(ctx context.Context, c *connection.Conn, op string) *plugin.Context {
	p := c.Current()
	if p == nil {
		trap(ctx, errorcodes.Violation(op, errorcodes.ErrNoActivePlugin))
	}

	return p
}

func (h *HostFunctions) log(ctx context.Context, mod api.Module, level zerolog.Level, ptr, size uint32) {
	c := conn(ctx, "log")
	logger := c.Logger()

	data, err := readMemory(mod, ptr, size)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read plugin log message")
		return
	}

	e := logger.WithLevel(level).Str("source", "wasm")
	if p := c.Current(); p != nil {
		e = e.Str("plugin", p.Name)
	}
	e.Msg(string(data))
}

func (h *HostFunctions) logDebug(ctx context.Context, mod api.Module, ptr, size uint32) {
	h.log(ctx, mod, zerolog.DebugLevel, ptr, size)
}

func (h *HostFunctions) logInfo(ctx context.Context, mod api.Module, ptr, size uint32) {
	h.log(ctx, mod, zerolog.InfoLevel, ptr, size)
}

func (h *HostFunctions) logError(ctx context.Context, mod api.Module, ptr, size uint32) {
	h.log(ctx, mod, zerolog.ErrorLevel, ptr, size)
}

// malloc returns the guest address of a new block, or 0 when the arena is
// exhausted.
func (h *HostFunctions) malloc(ctx context.Context, _ api.Module, size uint32) uint32 {
	c := conn(ctx, "malloc")
	p := current(ctx, c, "malloc")

	ptr, err := c.Malloc(size)
	if err != nil {
		if errorcodes.IsContractViolation(err) {
			trap(ctx, err)
		}
		return 0
	}

	return p.Address(ptr)
}

func (h *HostFunctions) free(ctx context.Context, _ api.Module, addr uint32) {
	c := conn(ctx, "free")
	p := current(ctx, c, "free")

	if err := c.Free(p.Ptr(addr)); err != nil {
		trap(ctx, err)
	}
}

// realloc returns the guest address of the moved block, or 0 on failure.
// The original block is released either way.
func (h *HostFunctions) realloc(ctx context.Context, _ api.Module, addr, size uint32) uint32 {
	c := conn(ctx, "realloc")
	p := current(ctx, c, "realloc")

	ptr, err := c.Realloc(p.Ptr(addr), size)
	if err != nil {
		if errorcodes.IsContractViolation(err) {
			trap(ctx, err)
		}
		return 0
	}
	if ptr == arena.Nil {
		return 0
	}

	return p.Address(ptr)
}

func (h *HostFunctions) getInput(ctx context.Context, _ api.Module, i uint32) uint64 {
	c := conn(ctx, "get_input")

	v, err := c.Input(int(i))
	if err != nil {
		trap(ctx, err)
	}

	return c.Word(v)
}

func (h *HostFunctions) setOutput(ctx context.Context, _ api.Module, i uint32, w uint64) {
	c := conn(ctx, "set_output")

	if err := c.SetOutput(int(i), c.Value(w)); err != nil {
		trap(ctx, err)
	}
}

func (h *HostFunctions) inputCount(ctx context.Context, _ api.Module) uint32 {
	return uint32(conn(ctx, "input_count").InputCount())
}

// runProtoop invokes op with argc words read from argv and writes outc
// output words to outv.
func (h *HostFunctions) runProtoop(
	ctx context.Context,
	mod api.Module,
	op, argc, argv, outc, outv uint32,
) uint64 {
	c := conn(ctx, "run_protoop")

	if outc > protoop.MaxArgs {
		trap(ctx, errorcodes.Violation("run_protoop", errorcodes.ErrTooManyArgs))
	}
	args, err := readWords(mod, c, argv, argc)
	if err != nil {
		if errors.Is(err, errorcodes.ErrTooManyArgs) {
			err = errorcodes.Violation("run_protoop", err)
		}
		trap(ctx, err)
	}

	outs := make([]protoop.Value, outc)
	res, err := c.Invoke(protoop.Opcode(op), args, outs)
	if err != nil {
		trap(ctx, err)
	}

	if err := writeWords(mod, c, outv, outs); err != nil {
		trap(ctx, err)
	}

	return c.Word(res)
}
