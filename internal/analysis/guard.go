package analysis

import "context"

// CallGuard runs one AI call. A scheduler installs one to hold a
// concurrency slot only while a request is in flight.
type CallGuard func(ctx context.Context, call func(ctx context.Context) error) error

type guardKey struct{}

// WithCallGuard returns a context whose AI calls run under g.
func WithCallGuard(ctx context.Context, g CallGuard) context.Context {
	return context.WithValue(ctx, guardKey{}, g)
}

// GuardCall runs call under the guard carried by ctx, or directly when
// there is none.
func GuardCall(ctx context.Context, call func(ctx context.Context) error) error {
	if g, ok := ctx.Value(guardKey{}).(CallGuard); ok && g != nil {
		return g(ctx, call)
	}
	return call(ctx)
}
