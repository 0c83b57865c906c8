// Package core provides the core-native defaults every connection starts
// with. Protocol bodies are supplied by plugins.
package core

import (
	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// Register installs the core defaults into t.
func Register(t *connection.Table) {
	t.SetCore(protoop.OpPrintf, printf)
	t.SetCore(protoop.OpNoop, noop)
}

// NewTable returns a table holding only the core defaults.
func NewTable() *connection.Table {
	t := connection.NewTable()
	Register(t)

	return t
}

func printf(c *connection.Conn, call *connection.Call) (protoop.Value, error) {
	caller := "core"
	if call.Caller != nil {
		caller = call.Caller.Name
	}

	args := make([]string, len(call.Inputs))
	for i, v := range call.Inputs {
		args[i] = v.String()
	}

	c.Logger().Info().
		Str("event", "protoop_printf").
		Str("plugin", caller).
		Strs("args", args).
		Msg("plugin printf")

	return protoop.Int(0), nil
}

func noop(*connection.Conn, *connection.Call) (protoop.Value, error) {
	return protoop.Int(0), nil
}
