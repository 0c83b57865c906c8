// Package pluginsdk provides the guest side of the sandbox ABI for WASM
// plugins. Plugins built with TinyGo import it to read their call frame,
// allocate in their arena and invoke other protocol operations.
package pluginsdk

import "github.com/andrei-cloud/go_protoop/pkg/protoop"

// Input returns input i of the current call as a raw word.
func Input(i int) uint64 {
	return getInput(uint32(i))
}

// InputInt returns input i as a signed integer.
func InputInt(i int) int64 {
	return int64(getInput(uint32(i)))
}

// InputBool returns input i as a boolean.
func InputBool(i int) bool {
	return getInput(uint32(i)) != 0
}

// InputCount returns the number of inputs of the current call.
func InputCount() int {
	return int(inputCount())
}

// SetOutput stores v in output slot i.
func SetOutput(i int, v uint64) {
	setOutput(uint32(i), v)
}

// SetOutputInt stores a signed integer in output slot i.
func SetOutputInt(i int, v int64) {
	setOutput(uint32(i), uint64(v))
}

// Malloc allocates size bytes in the plugin arena. It returns 0 when the
// arena is exhausted.
func Malloc(size uint32) uint32 {
	return pluginMalloc(size)
}

// Free releases a block returned by Malloc.
func Free(ptr uint32) {
	pluginFree(ptr)
}

// Realloc moves a block into one of size bytes. The original block is
// released even when it returns 0.
func Realloc(ptr, size uint32) uint32 {
	return pluginRealloc(ptr, size)
}

// Run invokes op with args and returns its result and nouts outputs.
// It panics when args or nouts exceed protoop.MaxArgs.
func Run(op protoop.Opcode, nouts int, args ...uint64) (uint64, []uint64) {
	if len(args) > protoop.MaxArgs || nouts > protoop.MaxArgs {
		panic("pluginsdk: too many arguments")
	}

	var argv, outv [protoop.MaxArgs]uint64
	copy(argv[:], args)
	res := runProtoop(uint32(op), argv[:len(args)], outv[:nouts])

	return res, outv[:nouts]
}

// Printf hands args to the printf operation for the host log.
func Printf(args ...uint64) {
	Run(protoop.OpPrintf, 0, args...)
}

// LogDebug logs a debug message on the host.
func LogDebug(msg string) { logMessage(levelDebug, msg) }

// LogInfo logs an info message on the host.
func LogInfo(msg string) { logMessage(levelInfo, msg) }

// LogError logs an error message on the host.
func LogError(msg string) { logMessage(levelError, msg) }

const (
	levelDebug = iota
	levelInfo
	levelError
)
