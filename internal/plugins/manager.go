// Package plugins loads plugin modules and instantiates them on
// connections. WASM plugins run under wazero with their arena carved out of
// guest linear memory; Lua plugins run under go-lua with a host arena.
package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/core"
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Config tunes a Manager.
type Config struct {
	// Memory is the arena capacity of plugins whose manifest sets none.
	Memory uint32
}

// Manager holds the loaded plugins and supports hot reload by recreating
// the runtime.
type Manager struct {
	//nolint:containedctx // Context is stored in the struct intentionally to allow reuse across plugin operations.
	ctx      context.Context
	cfg      Config
	runtime  wazero.Runtime
	defs     []definition
	registry *plugin.Registry
	mu       sync.RWMutex
}

// NewManager returns a Manager with no plugins loaded.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	rt, err := newRuntime(ctx)
	if err != nil {
		return nil, err
	}

	return &Manager{
		ctx:      ctx,
		cfg:      cfg,
		runtime:  rt,
		registry: plugin.NewRegistry(),
	}, nil
}

func newRuntime(ctx context.Context) (wazero.Runtime, error) {
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	if err := NewHostFunctions(rt).Register(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	return rt, nil
}

// LoadAll replaces the loaded plugins with the manifests found in dir and
// its immediate subdirectories. Plugins that fail to load are logged and
// skipped. Connections created before the reload keep their bindings, but
// their WASM instances stop working once the previous runtime is closed.
func (m *Manager) LoadAll(dir string) error {
	paths, err := manifestPaths(dir)
	if err != nil {
		return err
	}

	newRt, err := newRuntime(m.ctx)
	if err != nil {
		return err
	}

	var defs []definition
	registry := plugin.NewRegistry()

	for _, path := range paths {
		manifest, err := plugin.LoadManifest(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to read plugin manifest")
			continue
		}

		if _, dup := registry.Get(manifest.Name); dup {
			log.Error().Str("file", path).Str("plugin", manifest.Name).Msg("duplicate plugin name")
			continue
		}

		def, err := m.prepare(newRt, manifest, nil)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to load plugin")
			continue
		}

		defs = append(defs, def)
		registry.Register(manifest.Info())
		log.Info().
			Str("event", "plugin_loaded").
			Str("plugin", manifest.Name).
			Str("runtime", string(manifest.Runtime)).
			Msg("loaded plugin")
	}

	m.mu.Lock()
	if m.runtime != nil {
		if err := m.runtime.Close(m.ctx); err != nil {
			log.Error().Err(err).Msg("failed to close previous runtime")
		}
	}
	m.runtime = newRt
	m.defs = defs
	m.registry = registry
	m.mu.Unlock()

	return nil
}

// Load adds one plugin from its manifest. A nil module is read from the
// manifest's module path. A plugin of the same name is replaced.
func (m *Manager) Load(manifest *plugin.Manifest, module []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, err := m.prepare(m.runtime, manifest, module)
	if err != nil {
		return err
	}

	defs := make([]definition, 0, len(m.defs)+1)
	for _, d := range m.defs {
		if d.Manifest().Name != manifest.Name {
			defs = append(defs, d)
		}
	}
	m.defs = append(defs, def)
	m.registry.Register(manifest.Info())

	return nil
}

// manifestPaths lists *.toml files in dir and one level below, in
// directory order.
func manifestPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, f.Name())
		if !f.IsDir() {
			if filepath.Ext(f.Name()) == ".toml" {
				paths = append(paths, path)
			}
			continue
		}

		nested, err := filepath.Glob(filepath.Join(path, "*.toml"))
		if err != nil {
			return nil, err
		}
		paths = append(paths, nested...)
	}

	return paths, nil
}

func (m *Manager) prepare(rt wazero.Runtime, manifest *plugin.Manifest, module []byte) (definition, error) {
	if module == nil {
		data, err := os.ReadFile(manifest.ModulePath())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errorcodes.ErrPluginLoad, manifest.Name, err)
		}
		module = data
	}

	var (
		def definition
		err error
	)
	switch manifest.Runtime {
	case plugin.RuntimeLua:
		def, err = compileLua(manifest, module)
	default:
		def, err = compileWASM(m.ctx, rt, manifest, module)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errorcodes.ErrPluginLoad, manifest.Name, err)
	}

	return def, nil
}

// Attach instantiates every loaded plugin on c and binds its exports.
func (m *Manager) Attach(ctx context.Context, c *connection.Conn) error {
	m.mu.RLock()
	defs := m.defs
	m.mu.RUnlock()

	for _, def := range defs {
		if err := m.attach(ctx, c, def); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) attach(ctx context.Context, c *connection.Conn, def definition) error {
	manifest := def.Manifest()

	inst, err := def.Instantiate(ctx, c, manifest.ArenaSize(m.cfg.Memory))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errorcodes.ErrPluginLoad, manifest.Name, err)
	}
	p := inst.Context()
	c.Attach(p)

	for _, b := range manifest.Protoops {
		fn, err := inst.Export(b.Export)
		if err == nil {
			err = c.Table().Bind(b.Opcode, b.Anchor, connection.Impl{Owner: p, Name: b.Export, Fn: fn})
		}
		if err != nil {
			_ = c.Detach(manifest.Name)
			return fmt.Errorf("%s: %s: %w", manifest.Name, b.Opcode, err)
		}
	}

	c.Logger().Debug().
		Str("event", "plugin_attached").
		Str("plugin", manifest.Name).
		Str("arena", p.String()).
		Msg("plugin attached to connection")

	return nil
}

// NewConn creates a connection with the core defaults and every loaded
// plugin attached.
func (m *Manager) NewConn(ctx context.Context) (*connection.Conn, error) {
	c := connection.New(core.NewTable())
	if err := m.Attach(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// List returns the metadata of the loaded plugins.
func (m *Manager) List() []*plugin.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.List()
}

// Info returns the metadata of the named plugin.
func (m *Manager) Info(name string) (*plugin.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.Get(name)
}

// Context returns the manager context.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Close releases the runtime and every WASM instance created from it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.runtime.Close(m.ctx)
}
