package connection

import (
	"fmt"
	"sort"

	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// Func implements a protocol operation. It reads its arguments from call
// and writes secondary results with call.SetOutput.
type Func func(c *Conn, call *Call) (protoop.Value, error)

// Impl is an implementation attached to an operation. A nil Owner marks
// core-native code.
type Impl struct {
	Owner *plugin.Context
	Name  string
	Fn    Func
}

// Binding lists everything answering one opcode. Replace takes precedence
// over Core. Pre and Post observers run in attachment order.
type Binding struct {
	Core    Func
	Replace *Impl
	Pre     []Impl
	Post    []Impl
}

func (b *Binding) primary() (Impl, bool) {
	if b.Replace != nil {
		return *b.Replace, true
	}
	if b.Core != nil {
		return Impl{Name: "core", Fn: b.Core}, true
	}

	return Impl{}, false
}

// Table maps opcodes to their bindings. It is owned by one connection and
// only mutated while no invocation is running on it.
type Table struct {
	bindings map[protoop.Opcode]*Binding
}

// NewTable returns an empty binding table.
func NewTable() *Table {
	return &Table{bindings: make(map[protoop.Opcode]*Binding)}
}

func (t *Table) entry(op protoop.Opcode) *Binding {
	b, ok := t.bindings[op]
	if !ok {
		b = &Binding{}
		t.bindings[op] = b
	}

	return b
}

// SetCore installs the core default for op.
func (t *Table) SetCore(op protoop.Opcode, fn Func) {
	t.entry(op).Core = fn
}

// Bind attaches a plugin implementation to op. Only one plugin may replace
// a given operation.
func (t *Table) Bind(op protoop.Opcode, anchor plugin.Anchor, impl Impl) error {
	b := t.entry(op)

	switch anchor {
	case plugin.AnchorReplace:
		if b.Replace != nil && b.Replace.Owner != impl.Owner {
			return fmt.Errorf("%w: %s held by %s", errorcodes.ErrBindingConflict, op, ownerName(b.Replace.Owner))
		}
		b.Replace = &impl
	case plugin.AnchorPre:
		b.Pre = append(b.Pre, impl)
	case plugin.AnchorPost:
		b.Post = append(b.Post, impl)
	default:
		return fmt.Errorf("unknown anchor %q", anchor)
	}

	return nil
}

// Unbind removes every implementation owned by owner and returns how many
// were removed. Core defaults are untouched.
func (t *Table) Unbind(owner *plugin.Context) int {
	removed := 0
	for op, b := range t.bindings {
		if b.Replace != nil && b.Replace.Owner == owner {
			b.Replace = nil
			removed++
		}
		var n int
		b.Pre, n = dropOwned(b.Pre, owner)
		removed += n
		b.Post, n = dropOwned(b.Post, owner)
		removed += n

		if b.Core == nil && b.Replace == nil && len(b.Pre) == 0 && len(b.Post) == 0 {
			delete(t.bindings, op)
		}
	}

	return removed
}

func dropOwned(impls []Impl, owner *plugin.Context) ([]Impl, int) {
	kept := impls[:0]
	for _, impl := range impls {
		if impl.Owner != owner {
			kept = append(kept, impl)
		}
	}
	n := len(impls) - len(kept)
	clear(impls[len(kept):])

	return kept, n
}

// Lookup returns the binding of op.
func (t *Table) Lookup(op protoop.Opcode) (*Binding, bool) {
	b, ok := t.bindings[op]
	return b, ok
}

// Opcodes returns every bound opcode in ascending order.
func (t *Table) Opcodes() []protoop.Opcode {
	ops := make([]protoop.Opcode, 0, len(t.bindings))
	for op := range t.bindings {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	return ops
}

// Clone returns an independent copy, used to give each connection its own
// table seeded from a shared template.
func (t *Table) Clone() *Table {
	c := NewTable()
	for op, b := range t.bindings {
		nb := &Binding{
			Core: b.Core,
			Pre:  append([]Impl(nil), b.Pre...),
			Post: append([]Impl(nil), b.Post...),
		}
		if b.Replace != nil {
			r := *b.Replace
			nb.Replace = &r
		}
		c.bindings[op] = nb
	}

	return c
}

func ownerName(p *plugin.Context) string {
	if p == nil {
		return "core"
	}

	return p.Name
}
