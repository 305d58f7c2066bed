package pipelineports

import "context"

// CooldownLimiter gates expensive re-initialization attempts. Acquire
// returns an error while the key is cooling down; a successful acquire
// starts the next cooldown window.
type CooldownLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
