package portal

import "context"

type quietKey struct{}

// WithQuiet marks the context so failures on this call skip the dialog
// surface. Used by lookups whose not-found outcome is deliberately silent.
func WithQuiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func isQuiet(ctx context.Context) bool {
	quiet, _ := ctx.Value(quietKey{}).(bool)

	return quiet
}
