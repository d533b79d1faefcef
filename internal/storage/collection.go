package storage

import "context"

// Collection is a durable list ordered newest first. Implementations are not
// required to be safe for concurrent mutation; the stores serialize access.
type Collection[T any] interface {
	All(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, bool, error)
	Prepend(ctx context.Context, id string, item T) error
	Delete(ctx context.Context, id string) (bool, error)
}
