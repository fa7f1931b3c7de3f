package cache

import (
	"context"
	"errors"
)

// LocalStore is a string-keyed, string-valued durable store. It stands in for
// the browser's local storage: values survive reloads of the same device but
// are never shared across devices.
type LocalStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")
