// Package cli contains utilities for CLI operations.
package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// ParseValue parses a command-line argument of the form KIND:VALUE. A bare
// number is an int. Pointers take "nil" or a hex-encoded buffer.
func ParseValue(s string) (protoop.Value, error) {
	kind, raw, ok := strings.Cut(s, ":")
	if !ok {
		kind, raw = "int", s
	}

	switch strings.ToLower(kind) {
	case "int":
		n, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return protoop.Value{}, fmt.Errorf("invalid int %q: %w", raw, err)
		}
		return protoop.Int(n), nil
	case "uint":
		n, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return protoop.Value{}, fmt.Errorf("invalid uint %q: %w", raw, err)
		}
		return protoop.Uint(n), nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return protoop.Value{}, fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		return protoop.Bool(b), nil
	case "enum":
		n, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return protoop.Value{}, fmt.Errorf("invalid enum %q: %w", raw, err)
		}
		return protoop.Enum(uint32(n)), nil
	case "ptr", "pointer":
		if raw == "" || raw == "nil" {
			return protoop.Pointer(nil), nil
		}
		buf, err := hex.DecodeString(raw)
		if err != nil {
			return protoop.Value{}, fmt.Errorf("invalid buffer %q: %w", raw, err)
		}
		return protoop.Pointer(buf), nil
	}

	return protoop.Value{}, fmt.Errorf("unknown value kind %q", kind)
}

// ParseValues parses every argument with ParseValue.
func ParseValues(args []string) ([]protoop.Value, error) {
	out := make([]protoop.Value, len(args))
	for i, a := range args {
		v, err := ParseValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}

	return out, nil
}

// FormatValue renders v for terminal output. Buffers are shown in hex.
func FormatValue(v protoop.Value) string {
	if b, ok := v.Ref().([]byte); ok {
		return "pointer(" + hex.EncodeToString(b) + ")"
	}

	return v.String()
}

// PrintOpcodes writes the known protocol operations as a table.
func PrintOpcodes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Opcode\tName")
	_, _ = fmt.Fprintln(tw, "------\t----")
	for _, op := range protoop.Known() {
		_, _ = fmt.Fprintf(tw, "0x%03x\t%s\n", uint32(op), op)
	}

	return tw.Flush()
}
