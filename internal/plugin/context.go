// Package plugin holds the per-connection state of a loaded plugin and the
// metadata describing it.
package plugin

import (
	"fmt"

	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Context is one plugin instantiated on one connection. It exclusively owns
// its arena.
type Context struct {
	ID    uuid.UUID
	Name  string
	Arena *arena.Arena

	// Offset is the address at which arena offset 0 is visible to the
	// plugin's own code. Host arenas use 0; WASM arenas sit inside the
	// guest's linear memory.
	Offset uint32

	closer func() error
}

// NewContext creates a context for the named plugin and initializes its
// arena. Initialization happens exactly once here.
func NewContext(name string, a *arena.Arena) *Context {
	a.Init()
	a.SetLabel(name)

	return &Context{
		ID:    uuid.New(),
		Name:  name,
		Arena: a,
	}
}

// SetCloser registers the runtime teardown run by Close.
func (c *Context) SetCloser(fn func() error) {
	c.closer = fn
}

// Close releases the runtime instance behind the context and resets its
// arena. The context must not be used afterwards.
func (c *Context) Close() error {
	var err error
	if c.closer != nil {
		err = c.closer()
		c.closer = nil
	}
	c.Arena.Init()

	log.Debug().
		Str("event", "plugin_context_closed").
		Str("plugin", c.Name).
		Str("context_id", c.ID.String()).
		Msg("plugin context closed")

	return err
}

// Address converts an arena pointer into the plugin-visible address.
func (c *Context) Address(p arena.Ptr) uint32 {
	if p == arena.Nil {
		return 0
	}

	return c.Offset + uint32(p)
}

// Ptr converts a plugin-visible address back into an arena pointer.
// Addresses below the arena yield Nil.
func (c *Context) Ptr(addr uint32) arena.Ptr {
	if addr < c.Offset {
		return arena.Nil
	}

	return arena.Ptr(addr - c.Offset)
}

func (c *Context) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.ID.String()[:8])
}

// FreeInCore releases ptr from the arena of p on behalf of the core, for
// blocks whose ownership was handed to the core by that plugin.
func FreeInCore(p *Context, ptr arena.Ptr) {
	p.Arena.Free(ptr)
}
