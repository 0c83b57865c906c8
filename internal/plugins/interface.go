package plugins

import (
	"context"

	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
)

// definition is a loaded plugin ready to be instantiated on connections.
type definition interface {
	Manifest() *plugin.Manifest
	Instantiate(ctx context.Context, c *connection.Conn, memory uint32) (instance, error)
}

// instance is a plugin instantiated on one connection.
type instance interface {
	Context() *plugin.Context
	// Export resolves a plugin function implementing a protocol operation.
	Export(name string) (connection.Func, error)
}
