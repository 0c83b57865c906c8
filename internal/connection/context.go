package connection

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying c. Runtimes that call back into
// the host with only a context use it to find their connection.
func NewContext(ctx context.Context, c *Conn) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the connection stored in ctx.
func FromContext(ctx context.Context) (*Conn, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Conn)
	return c, ok && c != nil
}
