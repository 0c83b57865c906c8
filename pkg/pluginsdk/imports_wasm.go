//go:build wasm

package pluginsdk

import "unsafe"

//go:wasmimport env get_input
func getInput(i uint32) uint64

//go:wasmimport env set_output
func setOutput(i uint32, v uint64)

//go:wasmimport env input_count
func inputCount() uint32

//go:wasmimport env plugin_malloc
func pluginMalloc(size uint32) uint32

//go:wasmimport env plugin_free
func pluginFree(ptr uint32)

//go:wasmimport env plugin_realloc
func pluginRealloc(ptr, size uint32) uint32

//go:wasmimport env run_protoop
func hostRunProtoop(op, argc, argv, outc, outv uint32) uint64

//go:wasmimport env log_debug
func hostLogDebug(ptr, size uint32)

//go:wasmimport env log_info
func hostLogInfo(ptr, size uint32)

//go:wasmimport env log_error
func hostLogError(ptr, size uint32)

//nolint:gosec // guest addresses fit in 32 bits.
func addr(p unsafe.Pointer) uint32 {
	return uint32(uintptr(p))
}

func runProtoop(op uint32, args, outs []uint64) uint64 {
	var argv, outv uint32
	if len(args) > 0 {
		argv = addr(unsafe.Pointer(&args[0]))
	}
	if len(outs) > 0 {
		outv = addr(unsafe.Pointer(&outs[0]))
	}

	return hostRunProtoop(op, uint32(len(args)), argv, uint32(len(outs)), outv)
}

func logMessage(level int, msg string) {
	if msg == "" {
		return
	}
	ptr, size := addr(unsafe.Pointer(unsafe.StringData(msg))), uint32(len(msg))

	switch level {
	case levelDebug:
		hostLogDebug(ptr, size)
	case levelError:
		hostLogError(ptr, size)
	default:
		hostLogInfo(ptr, size)
	}
}

// Bytes returns the length bytes of linear memory at ptr.
//
//nolint:gosec // allow unsafe pointer usage.
func Bytes(ptr, length uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
}
