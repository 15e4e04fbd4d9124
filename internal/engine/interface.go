package engine

import "context"

// Driver is the backing store for blob bytes. Get must return a
// NotFoundError for a missing path. Put replaces the whole blob so that a
// concurrent Get sees either the old or the new content, never a mix.
type Driver interface {
	Name() string
	Get(ctx context.Context, path string) (Blob, error)
	Put(ctx context.Context, blob Blob) (existed bool, err error)
	Stat(ctx context.Context) (DriverStats, error)
	HealthCheck(ctx context.Context) error
}
