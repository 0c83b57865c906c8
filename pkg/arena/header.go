package arena

import "encoding/binary"

const (
	// headerSize is the fixed size of the metadata preceding every payload.
	headerSize = 8
	// alignment is the smallest chunk handed out, in bytes.
	alignment = 4
	// blockMagic marks a header written by the allocator.
	blockMagic uint32 = 0o123

	availableBit = uint32(1) << 31
	sizeMask     = availableBit - 1
)

// header is the decoded form of a block's metadata.
//
// Layout (little endian):
//
//	[0:4] size (bits 0..30) | available (bit 31)
//	[4:8] magic
type header struct {
	size      uint32
	available bool
	magic     uint32
}

func (h header) valid() bool {
	return h.magic == blockMagic
}

// headerOf returns the offset of the header owning the payload at p.
func headerOf(p Ptr) uint32 {
	return uint32(p) - headerSize
}

// payloadOf returns the payload address of the block whose header is at off.
func payloadOf(off uint32) Ptr {
	return Ptr(off + headerSize)
}

func readHeader(buf []byte, off uint32) header {
	word := binary.LittleEndian.Uint32(buf[off:])

	return header{
		size:      word & sizeMask,
		available: word&availableBit != 0,
		magic:     binary.LittleEndian.Uint32(buf[off+4:]),
	}
}

func writeHeader(buf []byte, off uint32, h header) {
	word := h.size & sizeMask
	if h.available {
		word |= availableBit
	}
	binary.LittleEndian.PutUint32(buf[off:], word)
	binary.LittleEndian.PutUint32(buf[off+4:], h.magic)
}

// alignSize rounds size up to the next multiple of the alignment factor.
func alignSize(size uint32) uint32 {
	if rem := size % alignment; rem != 0 {
		return size + alignment - rem
	}

	return size
}
