package restproxy

import "context"

type contextKey struct {
	name string
}

var invocationKey = &contextKey{"invocation"}

func withInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey, inv)
}

// InvocationFromContext returns the invocation being dispatched.
// It is set for filters and transports called by a proxy.
func InvocationFromContext(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(invocationKey).(*Invocation)
	return inv, ok
}

// MethodFromContext returns the client and method name of the current invocation.
func MethodFromContext(ctx context.Context) (client, method string, ok bool) {
	if inv, ok := InvocationFromContext(ctx); ok {
		return inv.client, inv.method.mapping.Name, true
	}
	return "", "", false
}
