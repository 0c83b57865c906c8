package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/bytedance/sonic"
)

// Request is one remote invocation.
type Request struct {
	Opcode  string     `json:"opcode"`
	Inputs  []Argument `json:"inputs"`
	Outputs int        `json:"outputs"`
}

// Argument is a tagged value on the wire. Integers, unsigned integers and
// enums carry a number, booleans a bool, pointers null or a hex-encoded
// buffer.
type Argument struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Response carries the outcome of an invocation. Error holds the sandbox
// error code when the invocation failed.
type Response struct {
	Result   Argument   `json:"result"`
	Outputs  []Argument `json:"outputs,omitempty"`
	Error    string     `json:"error,omitempty"`
	Message  string     `json:"message,omitempty"`
	Contract bool       `json:"contract,omitempty"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errorcodes.ErrMalformedRequest, fmt.Sprintf(format, args...))
}

// decodeRequest parses data and resolves the opcode and arguments.
func decodeRequest(data []byte) (protoop.Opcode, []protoop.Value, int, error) {
	var req Request
	if err := sonic.Unmarshal(data, &req); err != nil {
		return 0, nil, 0, malformed("%v", err)
	}

	op, err := protoop.ParseOpcode(req.Opcode)
	if err != nil {
		return 0, nil, 0, malformed("%v", err)
	}
	if req.Outputs < 0 || req.Outputs > protoop.MaxArgs {
		return 0, nil, 0, malformed("outputs %d out of range", req.Outputs)
	}
	if len(req.Inputs) > protoop.MaxArgs {
		return 0, nil, 0, malformed("%d inputs exceed %d", len(req.Inputs), protoop.MaxArgs)
	}

	inputs := make([]protoop.Value, len(req.Inputs))
	for i, a := range req.Inputs {
		v, err := a.decode()
		if err != nil {
			return 0, nil, 0, malformed("input %d: %v", i, err)
		}
		inputs[i] = v
	}

	return op, inputs, req.Outputs, nil
}

func (a Argument) decode() (protoop.Value, error) {
	if a.Kind == "uint" {
		var n uint64
		if err := sonic.Unmarshal(a.Value, &n); err != nil {
			return protoop.Value{}, err
		}
		return protoop.Uint(n), nil
	}

	kind, err := protoop.ParseKind(a.Kind)
	if err != nil {
		return protoop.Value{}, err
	}

	switch kind {
	case protoop.KindBool:
		var b bool
		if err := sonic.Unmarshal(a.Value, &b); err != nil {
			return protoop.Value{}, err
		}
		return protoop.Bool(b), nil
	case protoop.KindPointer:
		var s *string
		if len(a.Value) > 0 {
			if err := sonic.Unmarshal(a.Value, &s); err != nil {
				return protoop.Value{}, err
			}
		}
		if s == nil {
			return protoop.Pointer(nil), nil
		}
		buf, err := hex.DecodeString(*s)
		if err != nil {
			return protoop.Value{}, err
		}
		return protoop.Pointer(buf), nil
	case protoop.KindEnum:
		var n uint32
		if err := sonic.Unmarshal(a.Value, &n); err != nil {
			return protoop.Value{}, err
		}
		return protoop.Enum(n), nil
	default:
		var n int64
		if err := sonic.Unmarshal(a.Value, &n); err != nil {
			return protoop.Value{}, err
		}
		return protoop.Int(n), nil
	}
}

// encodeValue renders v for the wire. Buffers are hex encoded; other host
// references are described by type.
func encodeValue(v protoop.Value) Argument {
	var raw any
	switch v.Kind() {
	case protoop.KindInvalid:
		return Argument{Kind: v.Kind().String()}
	case protoop.KindBool:
		raw = v.Bool()
	case protoop.KindPointer:
		switch ref := v.Ref().(type) {
		case nil:
			raw = nil
		case []byte:
			raw = hex.EncodeToString(ref)
		default:
			raw = fmt.Sprintf("%T", ref)
		}
	case protoop.KindEnum:
		raw = v.Uint()
	default:
		raw = v.Int()
	}

	data, _ := sonic.Marshal(raw)

	return Argument{Kind: v.Kind().String(), Value: data}
}
