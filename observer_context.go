package ioc

import "context"

type notifyKey int

const (
	syncDeliveryKey notifyKey = iota
	buildLookupKey
)

// WithSynchronousNotification asks NotifyObservers to call each observer on
// the caller's goroutine instead of a goroutine of its own.
func WithSynchronousNotification(ctx context.Context) context.Context {
	return context.WithValue(ctx, syncDeliveryKey, true)
}

// IsSynchronousNotification reports whether ctx asks for inline delivery.
func IsSynchronousNotification(ctx context.Context) bool {
	v, _ := ctx.Value(syncDeliveryKey).(bool)
	return v
}

func withBuildLookup(ctx context.Context, lookup BeanLookup) context.Context {
	return context.WithValue(ctx, buildLookupKey, lookup)
}

// LookupFromContext returns the lookup of the build that raised a
// synchronously delivered lifecycle event. Such observers run while the
// build holds its lock and use this lookup to reach other beans.
func LookupFromContext(ctx context.Context) (BeanLookup, bool) {
	lookup, ok := ctx.Value(buildLookupKey).(BeanLookup)
	return lookup, ok
}
