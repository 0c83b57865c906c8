// Package arena implements the bounded per-plugin heap.
//
// Every plugin owns one Arena carved out of a fixed-capacity region. Blocks
// are laid out back to back, each preceded by an 8-byte header carrying its
// size, an availability bit and a magic tag. Allocation is first-fit over
// the implicit block list with splitting of oversized free blocks, falling
// back to bumping the high-water mark. Freed blocks are never coalesced.
//
// An Arena is not safe for concurrent use; it belongs to a single plugin
// of a single connection.
package arena

import (
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/rs/zerolog/log"
)

// DefaultPluginMemory is the arena capacity given to a plugin when its
// manifest does not ask for a specific size.
const DefaultPluginMemory = 1 << 20

// maxBlockSize is the largest payload a header can describe.
const maxBlockSize = sizeMask &^ (alignment - 1)

// Ptr addresses a payload as an offset from the start of the arena region.
type Ptr uint32

// Nil is the null payload address. No payload ever starts at offset 0.
const Nil Ptr = 0

// Block describes one block of the implicit list.
type Block struct {
	Ptr       Ptr
	Size      uint32
	Available bool
}

// Arena is a bounded first-fit allocator over a Region.
type Arena struct {
	region   Region
	capacity uint32
	label    string

	started   bool   // heap start recorded by the first allocation
	heapStart uint32 // offset of the first header ever carved
	heapEnd   uint32 // bump position, never decreases until Init
	lastBlock uint32 // offset of the tail header
	hasLast   bool

	// Metrics for allocator usage
	allocations uint64
	frees       uint64
	failures    uint64
	reuses      uint64
	splits      uint64
}

// New creates an arena backed by a fresh host buffer of capacity bytes.
func New(capacity uint32) *Arena {
	return NewWithRegion(make(SliceRegion, capacity))
}

// NewWithRegion creates an arena over an existing region. The capacity is
// fixed to the region length at construction.
func NewWithRegion(r Region) *Arena {
	n := len(r.Bytes())
	if n > int(sizeMask) {
		n = int(sizeMask)
	}

	a := &Arena{region: r, capacity: uint32(n)}
	a.Init()

	return a
}

// Init resets the heap bounds: heap start and end at the region base and no
// tail block. It must run before the first allocation of a plugin context
// and may run again at teardown.
func (a *Arena) Init() {
	a.started = false
	a.heapStart = 0
	a.heapEnd = 0
	a.lastBlock = 0
	a.hasLast = false
}

// SetLabel names the arena in diagnostics.
func (a *Arena) SetLabel(label string) {
	a.label = label
}

// Capacity returns the size of the region in bytes.
func (a *Arena) Capacity() uint32 {
	return a.capacity
}

// HeapEnd returns the current high-water mark.
func (a *Arena) HeapEnd() uint32 {
	return a.heapEnd
}

// Alloc reserves size bytes (rounded up to the alignment factor) and
// returns the payload address. It returns ErrOutOfMemory when the arena
// cannot satisfy the request; callers are expected to degrade gracefully.
func (a *Arena) Alloc(size uint32) (Ptr, error) {
	a.allocations++

	if size > maxBlockSize {
		a.failures++
		return Nil, errorcodes.ErrOutOfMemory
	}
	size = alignSize(size)
	buf := a.region.Bytes()

	var (
		off   uint32
		found bool
	)
	if a.started {
		off, found = a.findSlot(buf, size)
	} else {
		// Empty heap: nothing to search.
		a.heapStart = a.heapEnd
		a.started = true
	}

	if found {
		a.reuses++
		if readHeader(buf, off).size >= size+headerSize+alignment {
			a.divideSlot(buf, off, size)
		}
	} else {
		var ok bool
		off, ok = a.extend(buf, size)
		if !ok {
			a.failures++
			log.Debug().
				Str("event", "arena_exhausted").
				Str("plugin", a.label).
				Uint32("request", size).
				Uint32("heap_end", a.heapEnd).
				Uint32("capacity", a.capacity).
				Msg("plugin arena out of memory")

			return Nil, errorcodes.ErrOutOfMemory
		}
	}

	return payloadOf(off), nil
}

// Free marks the block owning p as available. Pointers outside the heap or
// not preceded by a valid header are ignored.
func (a *Arena) Free(p Ptr) {
	if !a.started {
		return
	}

	buf := a.region.Bytes()
	off, ok := a.lookup(buf, p)
	if !ok {
		log.Debug().
			Str("event", "arena_invalid_free").
			Str("plugin", a.label).
			Uint32("ptr", uint32(p)).
			Msg("ignoring free of foreign pointer")

		return
	}

	h := readHeader(buf, off)
	h.available = true
	writeHeader(buf, off, h)
	a.frees++
}

// Realloc moves the contents of p into a block of size bytes. A Nil p
// behaves as Alloc. The old pointer is invalid afterwards whether or not
// the call succeeds: on allocation failure p is freed and ErrOutOfMemory
// is returned. An invalid p yields ErrInvalidPointer and changes nothing.
//
// The block is always reallocated, even when shrinking.
func (a *Arena) Realloc(p Ptr, size uint32) (Ptr, error) {
	if p == Nil {
		return a.Alloc(size)
	}

	buf := a.region.Bytes()
	off, ok := a.lookup(buf, p)
	if !ok || !a.started {
		return Nil, errorcodes.ErrInvalidPointer
	}
	oldSize := readHeader(buf, off).size

	np, err := a.Alloc(size)
	if err != nil {
		a.Free(p)
		return Nil, err
	}

	n := min(oldSize, size)
	buf = a.region.Bytes()
	copy(buf[np:uint32(np)+n], buf[p:uint32(p)+n])
	a.Free(p)

	return np, nil
}

// Bytes returns the payload of the live block at p, sized to the block's
// recorded size, or nil when p is not a valid block.
func (a *Arena) Bytes(p Ptr) []byte {
	if !a.started {
		return nil
	}

	buf := a.region.Bytes()
	off, ok := a.lookup(buf, p)
	if !ok {
		return nil
	}
	end := uint32(p) + readHeader(buf, off).size

	return buf[p:end:end]
}

// Size returns the recorded payload size of the block at p.
func (a *Arena) Size(p Ptr) (uint32, bool) {
	if !a.started {
		return 0, false
	}

	buf := a.region.Bytes()
	off, ok := a.lookup(buf, p)
	if !ok {
		return 0, false
	}

	return readHeader(buf, off).size, true
}

// Walk calls fn for every block in address order until fn returns false.
func (a *Arena) Walk(fn func(Block) bool) {
	if !a.started || !a.hasLast {
		return
	}

	buf := a.region.Bytes()
	for off := a.heapStart; ; {
		h := readHeader(buf, off)
		if !h.valid() || !a.fits(off, h.size) {
			return
		}
		if !fn(Block{Ptr: payloadOf(off), Size: h.size, Available: h.available}) {
			return
		}
		next, ok := a.nextSlot(off, h)
		if !ok {
			return
		}
		off = next
	}
}

// Stats returns a map of statistics about the arena's usage.
// The statistics include:
// - allocations: Total number of allocation requests
// - frees: Number of blocks returned
// - failures: Number of requests that could not be satisfied
// - reuses: Number of requests served from a freed block
// - splits: Number of freed blocks divided to serve a smaller request
// - heap_used: Bytes between heap start and the high-water mark
// - capacity: Size of the region
func (a *Arena) Stats() map[string]any {
	stats := make(map[string]any)
	stats["allocations"] = a.allocations
	stats["frees"] = a.frees
	stats["failures"] = a.failures
	stats["reuses"] = a.reuses
	stats["splits"] = a.splits
	stats["heap_used"] = a.heapEnd - a.heapStart
	stats["capacity"] = a.capacity

	return stats
}

// ResetStats resets all usage counters to zero.
func (a *Arena) ResetStats() {
	a.allocations = 0
	a.frees = 0
	a.failures = 0
	a.reuses = 0
	a.splits = 0
}

// lookup validates that p lies inside the heap and is preceded by a valid
// header whose block ends within the heap, returning the header offset.
func (a *Arena) lookup(buf []byte, p Ptr) (uint32, bool) {
	if uint32(p) < a.heapStart+headerSize || uint32(p) >= a.heapEnd {
		return 0, false
	}

	off := headerOf(p)
	h := readHeader(buf, off)
	if !h.valid() || !a.fits(off, h.size) {
		return 0, false
	}

	return off, true
}

// fits reports whether a block of size bytes with its header at off ends
// within the heap. Headers sit in plugin-writable memory and may be forged.
func (a *Arena) fits(off, size uint32) bool {
	return uint64(off)+headerSize+uint64(size) <= uint64(a.heapEnd)
}

// nextSlot returns the header following off, or false at the tail.
func (a *Arena) nextSlot(off uint32, h header) (uint32, bool) {
	if !a.hasLast || off >= a.lastBlock {
		return 0, false
	}

	return off + headerSize + h.size, true
}

// findSlot scans the heap for the first available block of at least size
// bytes and marks it in use. Freed neighbours are not merged here; a
// coalescing strategy would slot in at this point.
func (a *Arena) findSlot(buf []byte, size uint32) (uint32, bool) {
	if !a.hasLast {
		return 0, false
	}

	for off := a.heapStart; ; {
		h := readHeader(buf, off)
		if !h.valid() || !a.fits(off, h.size) {
			return 0, false
		}
		if h.available && h.size >= size {
			h.available = false
			writeHeader(buf, off, h)
			return off, true
		}

		next, ok := a.nextSlot(off, h)
		if !ok {
			return 0, false
		}
		off = next
	}
}

// divideSlot shrinks the block at off to size bytes and turns the slack into
// a new free block, which becomes the tail when off was the tail.
func (a *Arena) divideSlot(buf []byte, off, size uint32) {
	h := readHeader(buf, off)
	rest := off + headerSize + size

	writeHeader(buf, rest, header{
		size:      h.size - size - headerSize,
		available: true,
		magic:     blockMagic,
	})

	h.size = size
	writeHeader(buf, off, h)

	if off == a.lastBlock {
		a.lastBlock = rest
	}
	a.splits++
}

// sbrk moves the bump position by increment bytes and reports whether the
// region could accommodate it.
func (a *Arena) sbrk(increment uint32) bool {
	if uint64(a.heapEnd)+uint64(increment)-uint64(a.heapStart) > uint64(a.capacity) ||
		uint64(a.heapEnd)+uint64(increment) > uint64(a.capacity) {
		return false
	}
	a.heapEnd += increment

	return true
}

// extend appends a new in-use block of size bytes at the bump position.
func (a *Arena) extend(buf []byte, size uint32) (uint32, bool) {
	off := a.heapEnd
	if off-a.heapStart > a.capacity {
		return 0, false
	}
	if !a.sbrk(size + headerSize) {
		return 0, false
	}

	writeHeader(buf, off, header{size: size, magic: blockMagic})
	a.lastBlock = off
	a.hasLast = true

	return off, true
}
