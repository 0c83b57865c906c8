// Package connection implements the protocol-operation invocation layer of
// one connection.
//
// A Conn carries everything an invocation needs: the binding table, the
// current plugin slot, the stack of active call frames and the plugins
// attached to it. Nothing lives in package-level state, so connections run
// concurrently without sharing. A single Conn is driven by one goroutine at
// a time.
package connection

import (
	"sort"

	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxDepth bounds the nesting of invocations on one connection.
const MaxDepth = 64

// Conn is a sandboxed connection.
type Conn struct {
	id      uuid.UUID
	table   *Table
	current *plugin.Context
	frames  []*Call
	plugins map[string]*plugin.Context
	handles handles
	logger  zerolog.Logger
}

// New creates a connection dispatching through t. A nil table starts empty.
func New(t *Table) *Conn {
	if t == nil {
		t = NewTable()
	}
	id := uuid.New()

	return &Conn{
		id:      id,
		table:   t,
		plugins: make(map[string]*plugin.Context),
		logger:  log.With().Str("cnx", id.String()).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() uuid.UUID { return c.id }

// Table returns the binding table of the connection.
func (c *Conn) Table() *Table { return c.table }

// Logger returns the connection-scoped logger.
func (c *Conn) Logger() *zerolog.Logger { return &c.logger }

// SetLogger replaces the connection-scoped logger.
func (c *Conn) SetLogger(l zerolog.Logger) {
	c.logger = l.With().Str("cnx", c.id.String()).Logger()
}

// Current returns the plugin whose code is executing, or nil while core
// code runs.
func (c *Conn) Current() *plugin.Context { return c.current }

// Depth returns the number of active invocations.
func (c *Conn) Depth() int { return len(c.frames) }

// Attach records p as instantiated on the connection.
func (c *Conn) Attach(p *plugin.Context) {
	c.plugins[p.Name] = p
}

// Plugin returns the attached plugin called name.
func (c *Conn) Plugin(name string) (*plugin.Context, bool) {
	p, ok := c.plugins[name]
	return p, ok
}

// Plugins returns the attached plugins sorted by name.
func (c *Conn) Plugins() []*plugin.Context {
	out := make([]*plugin.Context, 0, len(c.plugins))
	for _, p := range c.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Detach unbinds every implementation of the named plugin and closes its
// context.
func (c *Conn) Detach(name string) error {
	p, ok := c.plugins[name]
	if !ok {
		return nil
	}
	delete(c.plugins, name)
	n := c.table.Unbind(p)

	c.logger.Debug().
		Str("event", "plugin_detached").
		Str("plugin", name).
		Int("bindings", n).
		Msg("plugin detached from connection")

	return p.Close()
}

// Close detaches every plugin.
func (c *Conn) Close() error {
	var firstErr error
	for _, p := range c.Plugins() {
		if err := c.Detach(p.Name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.handles.reset()

	return firstErr
}
