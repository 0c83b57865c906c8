package plugins

import (
	"context"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"
	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// luaAPI is the global table scripts reach the sandbox through.
const luaAPI = "protoop"

type luaDefinition struct {
	manifest *plugin.Manifest
	source   string
}

// compileLua syntax-checks source and verifies every bound export is a
// global function.
func compileLua(m *plugin.Manifest, source []byte) (*luaDefinition, error) {
	d := &luaDefinition{manifest: m, source: string(source)}

	l := lua.NewState()
	lua.OpenLibraries(l)
	registerLuaAPI(l, nil)
	if err := lua.DoString(l, d.source); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	for _, b := range m.Protoops {
		if !isGlobalFunction(l, b.Export) {
			return nil, fmt.Errorf("missing function %q for %s", b.Export, b.Opcode)
		}
	}

	return d, nil
}

func isGlobalFunction(l *lua.State, name string) bool {
	l.Global(name)
	ok := l.IsFunction(-1)
	l.Pop(1)

	return ok
}

func (d *luaDefinition) Manifest() *plugin.Manifest { return d.manifest }

// Instantiate runs the script in a fresh state owned by c. The arena lives
// in host memory and is reached through the protoop table.
func (d *luaDefinition) Instantiate(
	_ context.Context,
	c *connection.Conn,
	memory uint32,
) (instance, error) {
	p := plugin.NewContext(d.manifest.Name, arena.New(memory))
	i := &luaInstance{plugin: p, conn: c, state: lua.NewState()}

	lua.OpenLibraries(i.state)
	registerLuaAPI(i.state, i)
	if err := lua.DoString(i.state, d.source); err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}
	p.SetCloser(func() error {
		i.state = nil
		return nil
	})

	return i, nil
}

type luaInstance struct {
	plugin *plugin.Context
	conn   *connection.Conn
	state  *lua.State
	fault  error
}

func (i *luaInstance) Context() *plugin.Context { return i.plugin }

func (i *luaInstance) Export(name string) (connection.Func, error) {
	if !isGlobalFunction(i.state, name) {
		return nil, fmt.Errorf("missing function %q", name)
	}

	return func(*connection.Conn, *connection.Call) (protoop.Value, error) {
		return i.call(name)
	}, nil
}

func (i *luaInstance) call(name string) (protoop.Value, error) {
	l := i.state
	if l == nil {
		return protoop.Value{}, fmt.Errorf("plugin %s is closed", i.plugin.Name)
	}

	top := l.Top()
	defer l.SetTop(top)

	i.fault = nil
	l.Global(name)
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		if f := i.fault; f != nil {
			i.fault = nil
			return protoop.Value{}, f
		}
		return protoop.Value{}, fmt.Errorf("lua: %w", err)
	}

	return toValue(l, -1), nil
}

// raise aborts the running script with err, keeping it for the caller.
func (i *luaInstance) raise(l *lua.State, err error) int {
	if i.fault == nil {
		i.fault = err
	}
	lua.Errorf(l, "%s", err.Error())

	return 0
}

// toValue converts a script value to a protocol operation value. Numbers
// become integers, userdata the host reference it wraps, nil becomes 0.
func toValue(l *lua.State, idx int) protoop.Value {
	switch l.TypeOf(idx) {
	case lua.TypeBoolean:
		return protoop.Bool(l.ToBoolean(idx))
	case lua.TypeUserData:
		return protoop.Pointer(l.ToUserData(idx))
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		return protoop.Int(int64(math.Trunc(n)))
	default:
		return protoop.Int(0)
	}
}

// pushValue hands v to a script. Host references travel as userdata so
// they come back unchanged through toValue.
func pushValue(l *lua.State, v protoop.Value) {
	switch v.Kind() {
	case protoop.KindBool:
		l.PushBoolean(v.Bool())
	case protoop.KindPointer:
		if v.Ref() == nil {
			l.PushNil()
			return
		}
		l.PushUserData(v.Ref())
	default:
		l.PushInteger(int(v.Int()))
	}
}

// registerLuaAPI installs the protoop table. A nil instance installs stubs
// that fail, which is enough to load a script for validation.
func registerLuaAPI(l *lua.State, i *luaInstance) {
	if i == nil {
		i = &luaInstance{}
	}

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "get_input", Function: i.getInput},
		{Name: "set_output", Function: i.setOutput},
		{Name: "input_count", Function: i.inputCount},
		{Name: "malloc", Function: i.malloc},
		{Name: "free", Function: i.free},
		{Name: "realloc", Function: i.realloc},
		{Name: "read_bytes", Function: i.readBytes},
		{Name: "write_bytes", Function: i.writeBytes},
		{Name: "run_protoop", Function: i.runProtoop},
		{Name: "log", Function: i.log},
	}, 0)

	l.NewTable()
	for _, op := range protoop.Known() {
		l.PushInteger(int(op))
		l.SetField(-2, op.String())
	}
	l.SetField(-2, "op")

	l.SetGlobal(luaAPI)
}

func (i *luaInstance) connection(l *lua.State) *connection.Conn {
	if i.conn == nil {
		i.raise(l, errorcodes.Violation("lua", errorcodes.ErrNoActivePlugin))
	}

	return i.conn
}

func (i *luaInstance) getInput(l *lua.State) int {
	c := i.connection(l)

	v, err := c.Input(lua.CheckInteger(l, 1))
	if err != nil {
		return i.raise(l, err)
	}
	pushValue(l, v)

	return 1
}

func (i *luaInstance) setOutput(l *lua.State) int {
	c := i.connection(l)

	if err := c.SetOutput(lua.CheckInteger(l, 1), toValue(l, 2)); err != nil {
		return i.raise(l, err)
	}

	return 0
}

func (i *luaInstance) inputCount(l *lua.State) int {
	l.PushInteger(i.connection(l).InputCount())
	return 1
}

func checkSize(l *lua.State, idx int) uint32 {
	n := lua.CheckInteger(l, idx)
	if n < 0 || int64(n) > math.MaxUint32 {
		lua.ArgumentError(l, idx, "size out of range")
	}

	return uint32(n)
}

func checkPtr(l *lua.State, idx int) arena.Ptr {
	if l.IsNoneOrNil(idx) {
		return arena.Nil
	}

	return arena.Ptr(checkSize(l, idx))
}

func pushPtr(l *lua.State, p arena.Ptr) {
	if p == arena.Nil {
		l.PushNil()
		return
	}
	l.PushInteger(int(p))
}

// malloc returns a block pointer or nil when the arena is exhausted.
func (i *luaInstance) malloc(l *lua.State) int {
	p, err := i.connection(l).Malloc(checkSize(l, 1))
	if err != nil && errorcodes.IsContractViolation(err) {
		return i.raise(l, err)
	}
	pushPtr(l, p)

	return 1
}

func (i *luaInstance) free(l *lua.State) int {
	if err := i.connection(l).Free(checkPtr(l, 1)); err != nil {
		return i.raise(l, err)
	}

	return 0
}

func (i *luaInstance) realloc(l *lua.State) int {
	p, err := i.connection(l).Realloc(checkPtr(l, 1), checkSize(l, 2))
	if err != nil && errorcodes.IsContractViolation(err) {
		return i.raise(l, err)
	}
	pushPtr(l, p)

	return 1
}

// readBytes returns up to n bytes of a block as a string.
func (i *luaInstance) readBytes(l *lua.State) int {
	b, err := i.connection(l).Bytes(checkPtr(l, 1))
	if err != nil {
		return i.raise(l, err)
	}

	n := int(checkSize(l, 2))
	if n > len(b) {
		n = len(b)
	}
	l.PushString(string(b[:n]))

	return 1
}

func (i *luaInstance) writeBytes(l *lua.State) int {
	b, err := i.connection(l).Bytes(checkPtr(l, 1))
	if err != nil {
		return i.raise(l, err)
	}

	s := lua.CheckString(l, 2)
	if len(s) > len(b) {
		return i.raise(l, fmt.Errorf("write of %d bytes overflows block of %d", len(s), len(b)))
	}
	copy(b, s)

	return 0
}

// runProtoop calls run_protoop(op, nouts, args...) and returns the result
// followed by nouts outputs.
func (i *luaInstance) runProtoop(l *lua.State) int {
	c := i.connection(l)

	op := protoop.Opcode(checkSize(l, 1))
	nouts := lua.OptInteger(l, 2, 0)
	if nouts < 0 || nouts > protoop.MaxArgs {
		return i.raise(l, errorcodes.Violation("run_protoop", errorcodes.ErrTooManyArgs))
	}

	var args []protoop.Value
	for idx := 3; idx <= l.Top(); idx++ {
		args = append(args, toValue(l, idx))
	}

	outs := make([]protoop.Value, nouts)
	res, err := c.Invoke(op, args, outs)
	if err != nil {
		return i.raise(l, err)
	}

	pushValue(l, res)
	for _, v := range outs {
		pushValue(l, v)
	}

	return 1 + nouts
}

func (i *luaInstance) log(l *lua.State) int {
	c := i.connection(l)

	c.Logger().Info().
		Str("source", "lua").
		Str("plugin", i.plugin.Name).
		Msg(lua.CheckString(l, 1))

	return 0
}
