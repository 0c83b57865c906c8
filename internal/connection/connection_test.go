package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	opOuter protoop.Opcode = 0x9000 + iota
	opInner
	opRecurse
)

func newPlugin(name string) *plugin.Context {
	return plugin.NewContext(name, arena.New(256))
}

func TestInvokeCoreDefault(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.Table().SetCore(protoop.OpSkipFrame, func(_ *Conn, call *Call) (protoop.Value, error) {
		require.NoError(t, call.SetOutput(0, protoop.Uint(call.Input(1).Uint())))
		require.NoError(t, call.SetOutput(1, protoop.Bool(true)))
		return protoop.Int(0), nil
	})

	outs := make([]protoop.Value, 2)
	res, err := c.Invoke(protoop.OpSkipFrame, []protoop.Value{
		protoop.Pointer(nil), protoop.Uint(42), protoop.Uint(0), protoop.Int(0),
	}, outs)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Int())
	assert.Equal(t, uint64(42), outs[0].Uint())
	assert.True(t, outs[1].Bool())
	assert.Nil(t, c.Current())
	assert.Zero(t, c.Depth())
}

func TestInvokeOutputArity(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.Table().SetCore(protoop.OpPrepareAckFrame, func(_ *Conn, call *Call) (protoop.Value, error) {
		// Only slot 0 is written; slots past the caller's capacity are dropped.
		require.NoError(t, call.SetOutput(0, protoop.Uint(7)))
		require.NoError(t, call.SetOutput(protoop.MaxArgs-1, protoop.Uint(9)))
		return protoop.Int(0), nil
	})

	outs := []protoop.Value{protoop.Int(-1), protoop.Int(-1), protoop.Int(-1)}
	_, err := c.Invoke(protoop.OpPrepareAckFrame, nil, outs[:2])
	require.NoError(t, err)

	assert.Equal(t, uint64(7), outs[0].Uint())
	assert.False(t, outs[1].IsValid(), "stale slot must be cleared")
	assert.Equal(t, int64(-1), outs[2].Int(), "slots past k are untouched")

	full := make([]protoop.Value, protoop.MaxArgs)
	_, err = c.Invoke(protoop.OpPrepareAckFrame, nil, full)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), full[protoop.MaxArgs-1].Uint())
}

func TestInvokeContractViolations(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.Table().SetCore(protoop.OpNoop, func(*Conn, *Call) (protoop.Value, error) {
		return protoop.Value{}, nil
	})

	tooMany := make([]protoop.Value, protoop.MaxArgs+1)

	_, err := c.Invoke(protoop.OpNoop, tooMany, nil)
	assert.True(t, errorcodes.IsContractViolation(err))
	assert.ErrorIs(t, err, errorcodes.ErrTooManyArgs)

	_, err = c.Invoke(protoop.OpNoop, nil, tooMany)
	assert.ErrorIs(t, err, errorcodes.ErrTooManyArgs)

	_, err = c.Invoke(protoop.OpUpdateRTT, nil, nil)
	assert.True(t, errorcodes.IsContractViolation(err))
	assert.ErrorIs(t, err, errorcodes.ErrNoImplementation)

	_, err = c.Input(0)
	assert.ErrorIs(t, err, errorcodes.ErrNoActiveCall)
	assert.ErrorIs(t, c.SetOutput(0, protoop.Int(1)), errorcodes.ErrNoActiveCall)

	call := &Call{Op: protoop.OpNoop}
	assert.ErrorIs(t, call.SetOutput(protoop.MaxArgs, protoop.Int(1)), errorcodes.ErrTooManyArgs)
	assert.False(t, call.Input(3).IsValid())
}

func TestReplaceOverridesCore(t *testing.T) {
	t.Parallel()

	c := New(nil)
	p := newPlugin("ack_delay")
	other := newPlugin("fec")

	c.Table().SetCore(protoop.OpUpdateAckDelay, func(*Conn, *Call) (protoop.Value, error) {
		return protoop.Int(1), nil
	})
	require.NoError(t, c.Table().Bind(protoop.OpUpdateAckDelay, plugin.AnchorReplace, Impl{
		Owner: p,
		Name:  "update_ack_delay",
		Fn: func(c *Conn, _ *Call) (protoop.Value, error) {
			assert.Same(t, p, c.Current())
			return protoop.Int(2), nil
		},
	}))

	err := c.Table().Bind(protoop.OpUpdateAckDelay, plugin.AnchorReplace, Impl{Owner: other})
	assert.ErrorIs(t, err, errorcodes.ErrBindingConflict)

	res, err := c.Invoke(protoop.OpUpdateAckDelay, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Int())

	require.Equal(t, 1, c.Table().Unbind(p))
	res, err = c.Invoke(protoop.OpUpdateAckDelay, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Int())
}

func TestObserversArePassive(t *testing.T) {
	t.Parallel()

	c := New(nil)
	var trace []string

	c.Table().SetCore(protoop.OpIsAckNeeded, func(_ *Conn, call *Call) (protoop.Value, error) {
		trace = append(trace, "core")
		require.NoError(t, call.SetOutput(0, protoop.Int(10)))
		return protoop.Bool(true), nil
	})

	pre := newPlugin("pre")
	post := newPlugin("post")
	require.NoError(t, c.Table().Bind(protoop.OpIsAckNeeded, plugin.AnchorPre, Impl{
		Owner: pre,
		Fn: func(c *Conn, call *Call) (protoop.Value, error) {
			trace = append(trace, "pre")
			assert.Same(t, pre, c.Current())
			assert.False(t, call.Result.IsValid())
			require.NoError(t, call.SetOutput(0, protoop.Int(99)))
			return protoop.Bool(false), nil
		},
	}))
	require.NoError(t, c.Table().Bind(protoop.OpIsAckNeeded, plugin.AnchorPost, Impl{
		Owner: post,
		Fn: func(_ *Conn, call *Call) (protoop.Value, error) {
			trace = append(trace, "post")
			assert.True(t, call.Result.Bool())
			assert.Equal(t, uint64(5), call.Input(0).Uint())
			require.NoError(t, call.SetOutput(0, protoop.Int(77)))
			return protoop.Bool(false), nil
		},
	}))

	outs := make([]protoop.Value, 1)
	res, err := c.Invoke(protoop.OpIsAckNeeded, []protoop.Value{protoop.Uint(5)}, outs)
	require.NoError(t, err)

	assert.Equal(t, []string{"pre", "core", "post"}, trace)
	assert.True(t, res.Bool())
	assert.Equal(t, int64(10), outs[0].Int())
}

func TestObserversWithoutPrimary(t *testing.T) {
	t.Parallel()

	c := New(nil)
	require.NoError(t, c.Table().Bind(protoop.OpPrintf, plugin.AnchorPost, Impl{
		Owner: newPlugin("spy"),
		Fn:    func(*Conn, *Call) (protoop.Value, error) { return protoop.Value{}, nil },
	}))

	_, err := c.Invoke(protoop.OpPrintf, nil, nil)
	assert.ErrorIs(t, err, errorcodes.ErrNoImplementation)
}

// TestReentrantInvocation checks that allocations resolve against the
// plugin current at each depth and that the slot is restored LIFO.
func TestReentrantInvocation(t *testing.T) {
	t.Parallel()

	c := New(nil)
	a := newPlugin("a")
	b := newPlugin("b")

	require.NoError(t, c.Table().Bind(opInner, plugin.AnchorReplace, Impl{
		Owner: b,
		Fn: func(c *Conn, call *Call) (protoop.Value, error) {
			assert.Same(t, a, call.Caller)
			ptr, err := c.Malloc(32)
			if err != nil {
				return protoop.Value{}, err
			}
			require.NoError(t, call.SetOutput(0, protoop.Uint(uint64(ptr))))
			return protoop.Int(1), nil
		},
	}))
	require.NoError(t, c.Table().Bind(opOuter, plugin.AnchorReplace, Impl{
		Owner: a,
		Fn: func(c *Conn, call *Call) (protoop.Value, error) {
			before, err := c.Malloc(8)
			require.NoError(t, err)

			outs := make([]protoop.Value, 1)
			if _, err := c.Invoke(opInner, nil, outs); err != nil {
				return protoop.Value{}, err
			}
			assert.Same(t, a, c.Current())
			assert.Equal(t, 1, c.Depth())

			after, err := c.Malloc(8)
			require.NoError(t, err)
			assert.Equal(t, before+16, after, "a's arena is unaffected by b's allocation")

			require.NoError(t, call.SetOutput(0, outs[0]))
			return protoop.Int(0), nil
		},
	}))

	outs := make([]protoop.Value, 1)
	_, err := c.Invoke(opOuter, nil, outs)
	require.NoError(t, err)

	innerPtr := arena.Ptr(outs[0].Uint())
	size, ok := b.Arena.Size(innerPtr)
	require.True(t, ok)
	assert.Equal(t, uint32(32), size)
	assert.Equal(t, uint32(40), b.Arena.HeapEnd())
	assert.Equal(t, uint32(32), a.Arena.HeapEnd())

	assert.Nil(t, c.Current())
	assert.Zero(t, c.Depth())
}

func TestCurrentRestoredOnError(t *testing.T) {
	t.Parallel()

	c := New(nil)
	p := newPlugin("faulty")
	boom := errors.New("trap")

	require.NoError(t, c.Table().Bind(opInner, plugin.AnchorReplace, Impl{
		Owner: p,
		Name:  "inner",
		Fn:    func(*Conn, *Call) (protoop.Value, error) { return protoop.Value{}, boom },
	}))

	_, err := c.Invoke(opInner, nil, nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "faulty/inner")
	assert.Nil(t, c.Current())
	assert.Nil(t, c.Frame())
}

func TestNestingLimit(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.Table().SetCore(opRecurse, func(c *Conn, _ *Call) (protoop.Value, error) {
		return c.Invoke(opRecurse, nil, nil)
	})

	_, err := c.Invoke(opRecurse, nil, nil)
	assert.True(t, errorcodes.IsContractViolation(err))
	assert.ErrorIs(t, err, errorcodes.ErrNestingLimit)
	assert.Zero(t, c.Depth())
}

func TestAllocatorRequiresActivePlugin(t *testing.T) {
	t.Parallel()

	c := New(nil)

	_, err := c.Malloc(8)
	require.Error(t, err)
	assert.True(t, errorcodes.IsContractViolation(err))
	assert.ErrorIs(t, err, errorcodes.ErrNoActivePlugin)

	assert.ErrorIs(t, c.Free(8), errorcodes.ErrNoActivePlugin)
	_, err = c.Realloc(8, 16)
	assert.ErrorIs(t, err, errorcodes.ErrNoActivePlugin)
	_, err = c.Bytes(8)
	assert.ErrorIs(t, err, errorcodes.ErrNoActivePlugin)
}

func TestWithPlugin(t *testing.T) {
	t.Parallel()

	c := New(nil)
	p := newPlugin("fec")

	var ptr arena.Ptr
	err := c.WithPlugin(p, func() error {
		var err error
		ptr, err = c.Malloc(12)
		if err != nil {
			return err
		}
		b, err := c.Bytes(ptr)
		if err != nil {
			return err
		}
		copy(b, "frame")

		ptr, err = c.Realloc(ptr, 24)
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, c.Current())

	got, err := arena.ReadBytes(p.Arena, ptr, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), got)

	require.NoError(t, c.WithPlugin(p, func() error { return c.Free(ptr) }))
	// One free from the realloc, one explicit.
	assert.Equal(t, uint64(2), p.Arena.Stats()["frees"])

	_, err = c.Bytes(ptr)
	assert.ErrorIs(t, err, errorcodes.ErrNoActivePlugin)
}

func TestHandles(t *testing.T) {
	t.Parallel()

	c := New(nil)
	type path struct{ id int }
	p := &path{id: 1}

	w := c.Handle(p)
	assert.NotZero(t, w)
	assert.Equal(t, w, c.Handle(p))
	assert.Zero(t, c.Handle(nil))

	ref, ok := c.Deref(w)
	require.True(t, ok)
	assert.Same(t, p, ref)

	slice := []int{1}
	ws := c.Handle(slice)
	assert.NotEqual(t, ws, c.Handle(slice), "non-comparable refs get fresh words")

	c.Release(w)
	_, ok = c.Deref(w)
	assert.False(t, ok)
	assert.NotEqual(t, w, c.Handle(p))

	_, ok = c.Deref(0)
	assert.False(t, ok)
}

func TestValueFromWord(t *testing.T) {
	t.Parallel()

	c := New(nil)
	type stream struct{ id uint64 }
	s := &stream{id: 4}

	v := c.Value(c.Word(protoop.Pointer(s)))
	require.Equal(t, protoop.KindPointer, v.Kind())
	assert.Same(t, s, v.Ref())

	assert.Equal(t, protoop.Int(-1), c.Value(c.Word(protoop.Int(-1))))
	assert.Equal(t, protoop.Int(42), c.Value(42))
	assert.Equal(t, protoop.Int(0), c.Value(c.Word(protoop.Pointer(nil))))
	assert.Equal(t, uint64(1), c.Word(protoop.Bool(true)))
}

func TestDetach(t *testing.T) {
	t.Parallel()

	c := New(nil)
	p := newPlugin("tlp")
	closed := false
	p.SetCloser(func() error {
		closed = true
		return nil
	})
	c.Attach(p)

	noop := func(*Conn, *Call) (protoop.Value, error) { return protoop.Value{}, nil }
	require.NoError(t, c.Table().Bind(protoop.OpSetNextWakeTime, plugin.AnchorReplace, Impl{Owner: p, Fn: noop}))
	require.NoError(t, c.Table().Bind(protoop.OpPrintf, plugin.AnchorPre, Impl{Owner: p, Fn: noop}))

	got, ok := c.Plugin("tlp")
	require.True(t, ok)
	assert.Same(t, p, got)

	require.NoError(t, c.Close())
	assert.True(t, closed)
	assert.Empty(t, c.Plugins())
	assert.Empty(t, c.Table().Opcodes())
}

func TestTableClone(t *testing.T) {
	t.Parallel()

	base := NewTable()
	base.SetCore(protoop.OpNoop, func(*Conn, *Call) (protoop.Value, error) { return protoop.Int(1), nil })

	clone := base.Clone()
	p := newPlugin("x")
	require.NoError(t, clone.Bind(protoop.OpNoop, plugin.AnchorReplace, Impl{
		Owner: p,
		Fn:    func(*Conn, *Call) (protoop.Value, error) { return protoop.Int(2), nil },
	}))

	b, ok := base.Lookup(protoop.OpNoop)
	require.True(t, ok)
	assert.Nil(t, b.Replace)

	res, err := New(clone).Invoke(protoop.OpNoop, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Int())

	assert.Equal(t, []protoop.Opcode{protoop.OpNoop}, clone.Opcodes())
}

func TestConnContext(t *testing.T) {
	t.Parallel()

	c := New(nil)
	ctx := NewContext(context.Background(), c)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
