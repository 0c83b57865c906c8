package connection

import (
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
)

// active resolves the current plugin for an allocator entry point.
func (c *Conn) active(op string) (*plugin.Context, error) {
	if c.current == nil {
		return nil, errorcodes.Violation(op, errorcodes.ErrNoActivePlugin)
	}

	return c.current, nil
}

// Malloc allocates size bytes in the arena of the current plugin.
// Exhaustion is reported as errorcodes.ErrOutOfMemory.
func (c *Conn) Malloc(size uint32) (arena.Ptr, error) {
	p, err := c.active("malloc")
	if err != nil {
		return arena.Nil, err
	}

	return p.Arena.Alloc(size)
}

// Free releases ptr in the arena of the current plugin. Invalid pointers
// are ignored.
func (c *Conn) Free(ptr arena.Ptr) error {
	p, err := c.active("free")
	if err != nil {
		return err
	}
	p.Arena.Free(ptr)

	return nil
}

// Realloc moves ptr into a block of size bytes in the arena of the current
// plugin. ptr is invalid afterwards whatever the outcome.
func (c *Conn) Realloc(ptr arena.Ptr, size uint32) (arena.Ptr, error) {
	p, err := c.active("realloc")
	if err != nil {
		return arena.Nil, err
	}

	return p.Arena.Realloc(ptr, size)
}

// Bytes returns the payload of ptr in the arena of the current plugin.
func (c *Conn) Bytes(ptr arena.Ptr) ([]byte, error) {
	p, err := c.active("bytes")
	if err != nil {
		return nil, err
	}

	b := p.Arena.Bytes(ptr)
	if b == nil {
		return nil, errorcodes.ErrInvalidPointer
	}

	return b, nil
}

// WithPlugin runs fn with p installed as the current plugin, so core code
// can allocate on a plugin's behalf. The previous plugin is restored when
// fn returns.
func (c *Conn) WithPlugin(p *plugin.Context, fn func() error) error {
	saved := c.current
	c.current = p
	defer func() { c.current = saved }()

	return fn()
}
