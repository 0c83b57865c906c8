package arena

// Region is the fixed-capacity byte window an Arena carves blocks from.
// Bytes must always return a slice of the same length; implementations
// backed by relocatable memory may return a fresh view on every call.
type Region interface {
	Bytes() []byte
}

// SliceRegion is a Region backed by a host byte slice.
type SliceRegion []byte

// Bytes returns the backing slice.
func (r SliceRegion) Bytes() []byte {
	return r
}
