package connection

import (
	"fmt"

	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// Call is the invocation record seen by an implementation.
type Call struct {
	Op     protoop.Opcode
	Inputs []protoop.Value

	// Caller is the plugin that issued the invocation, nil for the core.
	Caller *plugin.Context

	// Result holds the primary result while post observers run.
	Result protoop.Value

	outputs [protoop.MaxArgs]protoop.Value
}

// Input returns input i, or an undefined Value past the supplied arity.
func (call *Call) Input(i int) protoop.Value {
	if i < 0 || i >= len(call.Inputs) {
		return protoop.Value{}
	}

	return call.Inputs[i]
}

// SetOutput writes output slot i.
func (call *Call) SetOutput(i int, v protoop.Value) error {
	if i < 0 || i >= protoop.MaxArgs {
		return errorcodes.Violation("set_output",
			fmt.Errorf("%w: output %d of %s", errorcodes.ErrTooManyArgs, i, call.Op))
	}
	call.outputs[i] = v

	return nil
}

// Output returns output slot i as written so far.
func (call *Call) Output(i int) protoop.Value {
	if i < 0 || i >= protoop.MaxArgs {
		return protoop.Value{}
	}

	return call.outputs[i]
}

// Invoke runs the implementation bound to op. Inputs are positional; the
// outputs buffer is cleared and its first len(outputs) slots receive the
// secondary results. Pre observers run before and post observers after the
// primary implementation; they cannot produce outputs and their results
// are discarded.
//
// Errors carrying an errorcodes.ContractError report misuse by the caller
// rather than a failure of the operation.
func (c *Conn) Invoke(op protoop.Opcode, inputs, outputs []protoop.Value) (protoop.Value, error) {
	if len(inputs) > protoop.MaxArgs || len(outputs) > protoop.MaxArgs {
		return protoop.Value{}, errorcodes.Violation("invoke", fmt.Errorf("%w: %s with %d inputs and %d outputs",
			errorcodes.ErrTooManyArgs, op, len(inputs), len(outputs)))
	}
	clear(outputs)

	b, ok := c.table.Lookup(op)
	if !ok {
		return protoop.Value{}, c.unbound(op)
	}
	primary, ok := b.primary()
	if !ok {
		return protoop.Value{}, c.unbound(op)
	}
	if len(c.frames) >= MaxDepth {
		return protoop.Value{}, errorcodes.Violation("invoke",
			fmt.Errorf("%w: %s at depth %d", errorcodes.ErrNestingLimit, op, len(c.frames)))
	}

	for _, obs := range b.Pre {
		if err := c.observe(obs, op, inputs, protoop.Value{}); err != nil {
			return protoop.Value{}, err
		}
	}

	call := &Call{Op: op, Inputs: inputs, Caller: c.current}
	result, err := c.run(primary, call)
	if err != nil {
		return protoop.Value{}, err
	}
	copy(outputs, call.outputs[:len(outputs)])

	for _, obs := range b.Post {
		if err := c.observe(obs, op, inputs, result); err != nil {
			return protoop.Value{}, err
		}
	}

	return result, nil
}

func (c *Conn) unbound(op protoop.Opcode) error {
	c.logger.Debug().
		Str("event", "protoop_unbound").
		Str("protoop", op.String()).
		Msg("no implementation bound")

	return errorcodes.Violation("invoke", fmt.Errorf("%w: %s", errorcodes.ErrNoImplementation, op))
}

func (c *Conn) observe(obs Impl, op protoop.Opcode, inputs []protoop.Value, result protoop.Value) error {
	call := &Call{Op: op, Inputs: inputs, Caller: c.current, Result: result}
	_, err := c.run(obs, call)

	return err
}

// run executes impl with its owner installed as the current plugin and the
// call pushed on the frame stack. Both are restored on return.
func (c *Conn) run(impl Impl, call *Call) (protoop.Value, error) {
	saved := c.current
	c.current = impl.Owner
	c.frames = append(c.frames, call)
	defer func() {
		c.frames[len(c.frames)-1] = nil
		c.frames = c.frames[:len(c.frames)-1]
		c.current = saved
	}()

	result, err := impl.Fn(c, call)
	if err != nil {
		return protoop.Value{}, fmt.Errorf("%s (%s/%s): %w", call.Op, ownerName(impl.Owner), impl.Name, err)
	}

	return result, nil
}

// Frame returns the innermost active call, or nil outside any invocation.
func (c *Conn) Frame() *Call {
	if len(c.frames) == 0 {
		return nil
	}

	return c.frames[len(c.frames)-1]
}

// Input returns input i of the innermost active call.
func (c *Conn) Input(i int) (protoop.Value, error) {
	call := c.Frame()
	if call == nil {
		return protoop.Value{}, errorcodes.Violation("get_input", errorcodes.ErrNoActiveCall)
	}

	return call.Input(i), nil
}

// InputCount returns the arity of the innermost active call.
func (c *Conn) InputCount() int {
	call := c.Frame()
	if call == nil {
		return 0
	}

	return len(call.Inputs)
}

// SetOutput writes output slot i of the innermost active call.
func (c *Conn) SetOutput(i int, v protoop.Value) error {
	call := c.Frame()
	if call == nil {
		return errorcodes.Violation("set_output", errorcodes.ErrNoActiveCall)
	}

	return call.SetOutput(i, v)
}
