package myratelimit

import "context"

// Limiter bounds how often an operation may be performed per key within a
// sliding window. Injected rather than package-global so multi-instance
// deployments can swap in a shared implementation.
type Limiter interface {
	Allow(c context.Context, key string) bool
}
