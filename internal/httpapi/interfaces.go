package httpapi

import "context"

// ReadyChecker is optionally implemented by stores and caches to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
