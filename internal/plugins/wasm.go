package plugins

import (
	"context"
	"fmt"

	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const pageSize = 65536

// linearRegion is the slice of guest linear memory backing a plugin arena.
// The view is taken on every access since growing memory may move it.
type linearRegion struct {
	mem  api.Memory
	base uint32
	size uint32
}

func (r *linearRegion) Bytes() []byte {
	b, ok := r.mem.Read(r.base, r.size)
	if !ok {
		return nil
	}

	return b
}

type wasmDefinition struct {
	manifest *plugin.Manifest
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

func compileWASM(
	ctx context.Context,
	rt wazero.Runtime,
	m *plugin.Manifest,
	module []byte,
) (*wasmDefinition, error) {
	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	if len(compiled.ExportedMemories()) == 0 {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("module exports no memory")
	}

	exports := compiled.ExportedFunctions()
	for _, b := range m.Protoops {
		def, ok := exports[b.Export]
		if !ok {
			_ = compiled.Close(ctx)
			return nil, fmt.Errorf("missing export %q for %s", b.Export, b.Opcode)
		}
		if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) > 1 {
			_ = compiled.Close(ctx)
			return nil, fmt.Errorf("export %q must take no parameters and return at most one value", b.Export)
		}
	}

	return &wasmDefinition{manifest: m, runtime: rt, compiled: compiled}, nil
}

func (d *wasmDefinition) Manifest() *plugin.Manifest { return d.manifest }

// Instantiate creates a module instance for c and grows its memory by the
// arena capacity. The arena occupies the new pages.
func (d *wasmDefinition) Instantiate(
	ctx context.Context,
	c *connection.Conn,
	memory uint32,
) (instance, error) {
	callCtx, f := withFault(connection.NewContext(context.WithoutCancel(ctx), c))

	name := fmt.Sprintf("%s@%s", d.manifest.Name, c.ID())
	mod, err := d.runtime.InstantiateModule(callCtx, d.compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	mem := mod.Memory()
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("module exports no memory")
	}

	// Reactor modules set up their own heap before the arena is mapped.
	if initFn := mod.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(callCtx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to initialize module: %w", err)
		}
	}

	pages := (memory + pageSize - 1) / pageSize
	prev, ok := mem.Grow(pages)
	if !ok {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("failed to grow memory by %d pages", pages)
	}

	region := &linearRegion{mem: mem, base: prev * pageSize, size: memory}
	p := plugin.NewContext(d.manifest.Name, arena.NewWithRegion(region))
	p.Offset = region.base
	p.SetCloser(func() error { return mod.Close(context.Background()) })

	return &wasmInstance{plugin: p, mod: mod, ctx: callCtx, fault: f}, nil
}

type wasmInstance struct {
	plugin *plugin.Context
	mod    api.Module
	ctx    context.Context
	fault  *fault
}

func (i *wasmInstance) Context() *plugin.Context { return i.plugin }

func (i *wasmInstance) Export(name string) (connection.Func, error) {
	if i.mod.ExportedFunction(name) == nil {
		return nil, fmt.Errorf("missing export %q", name)
	}

	return func(c *connection.Conn, _ *connection.Call) (protoop.Value, error) {
		// A fresh handle per call keeps nested calls into the same
		// module on separate stacks.
		res, err := i.mod.ExportedFunction(name).Call(i.ctx)
		if err != nil {
			if f := i.fault.take(); f != nil {
				return protoop.Value{}, f
			}
			return protoop.Value{}, err
		}
		if len(res) == 0 {
			return protoop.Int(0), nil
		}

		return c.Value(res[0]), nil
	}, nil
}
