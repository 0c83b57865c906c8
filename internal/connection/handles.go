package connection

import (
	"reflect"

	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// handleTag marks the words issued for host references. Only integers close
// to -2^63 can collide with a live handle.
const handleTag uint64 = 1 << 63

// handles maps host references to machine words so they can travel through
// runtimes that only understand integers. Word 0 is reserved for nil.
type handles struct {
	refs  map[uint64]any
	words map[any]uint64
	next  uint64
}

func (h *handles) reset() {
	h.refs = nil
	h.words = nil
	h.next = 0
}

// Handle returns the word standing for ref on this connection. The same
// comparable reference always maps to the same word.
func (c *Conn) Handle(ref any) uint64 {
	if ref == nil {
		return 0
	}

	h := &c.handles
	if h.refs == nil {
		h.refs = make(map[uint64]any)
		h.words = make(map[any]uint64)
	}

	keyed := reflect.ValueOf(ref).Comparable()
	if keyed {
		if w, ok := h.words[ref]; ok {
			return w
		}
	}

	h.next++
	w := handleTag | h.next
	h.refs[w] = ref
	if keyed {
		h.words[ref] = w
	}

	return w
}

// Deref returns the reference a word stands for.
func (c *Conn) Deref(word uint64) (any, bool) {
	if word&handleTag == 0 {
		return nil, false
	}
	ref, ok := c.handles.refs[word]

	return ref, ok
}

// Release forgets a word.
func (c *Conn) Release(word uint64) {
	h := &c.handles
	ref, ok := h.refs[word]
	if !ok {
		return
	}
	delete(h.refs, word)
	if reflect.ValueOf(ref).Comparable() {
		delete(h.words, ref)
	}
}

// Word flattens v into a machine word. Pointers become handles.
func (c *Conn) Word(v protoop.Value) uint64 {
	if v.Kind() == protoop.KindPointer {
		return c.Handle(v.Ref())
	}

	return v.Word()
}

// Value rebuilds the value a word read back from a plugin stands for.
// Handle words yield the reference they were issued for; any other word is
// an integer.
func (c *Conn) Value(word uint64) protoop.Value {
	if ref, ok := c.Deref(word); ok {
		return protoop.Pointer(ref)
	}

	return protoop.Uint(word)
}
