package arena

import "github.com/andrei-cloud/go_protoop/internal/errorcodes"

// ReadBytes copies length bytes out of the block at ptr.
func ReadBytes(a *Arena, ptr Ptr, length uint32) ([]byte, error) {
	payload := a.Bytes(ptr)
	if payload == nil || length > uint32(len(payload)) {
		return nil, errorcodes.ErrInvalidPointer
	}

	return append([]byte(nil), payload[:length]...), nil
}

// WriteBytes copies data into the block at ptr.
func WriteBytes(a *Arena, ptr Ptr, data []byte) error {
	payload := a.Bytes(ptr)
	if payload == nil || len(data) > len(payload) {
		return errorcodes.ErrInvalidPointer
	}
	copy(payload, data)

	return nil
}

// AllocBytes allocates a block sized for data and copies data into it.
func AllocBytes(a *Arena, data []byte) (Ptr, error) {
	ptr, err := a.Alloc(uint32(len(data)))
	if err != nil {
		return Nil, err
	}
	copy(a.Bytes(ptr), data)

	return ptr, nil
}
