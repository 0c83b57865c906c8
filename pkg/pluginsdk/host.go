//go:build !wasm

package pluginsdk

// Host stands in for the sandbox when a plugin runs natively, which lets
// plugin logic be unit tested with go test.
type Host interface {
	Input(i uint32) uint64
	SetOutput(i uint32, v uint64)
	InputCount() uint32
	Malloc(size uint32) uint32
	Free(ptr uint32)
	Realloc(ptr, size uint32) uint32
	Run(op uint32, args, outs []uint64) uint64
	Log(level int, msg string)
	Bytes(ptr, length uint32) []byte
}

var host Host

// SetHost installs h as the native sandbox and returns the previous one.
func SetHost(h Host) Host {
	prev := host
	host = h

	return prev
}

func current() Host {
	if host == nil {
		panic("pluginsdk: no host installed")
	}

	return host
}

func getInput(i uint32) uint64              { return current().Input(i) }
func setOutput(i uint32, v uint64)          { current().SetOutput(i, v) }
func inputCount() uint32                    { return current().InputCount() }
func pluginMalloc(size uint32) uint32       { return current().Malloc(size) }
func pluginFree(ptr uint32)                 { current().Free(ptr) }
func pluginRealloc(ptr, size uint32) uint32 { return current().Realloc(ptr, size) }

func runProtoop(op uint32, args, outs []uint64) uint64 {
	return current().Run(op, args, outs)
}

func logMessage(level int, msg string) {
	current().Log(level, msg)
}

// Bytes returns the length bytes of host memory at ptr.
func Bytes(ptr, length uint32) []byte {
	return current().Bytes(ptr, length)
}
