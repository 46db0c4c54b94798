package conncache

import (
	"fmt"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
)

type cacheOptions struct {
	driver remote.Driver

	// rollbackOnRelease controls what ReleaseAll does with a still-open
	// remote transaction. A dangling transaction at teardown cannot be
	// assumed committable, so the default is rollback.
	rollbackOnRelease bool
}

const defaultRollbackOnRelease = true

// Option configures a connection cache.
type Option func(*cacheOptions)

// WithDriver sets the remote driver sessions are established through.
// Required.
func WithDriver(driver remote.Driver) Option {
	return func(o *cacheOptions) { o.driver = driver }
}

// WithCommitOnRelease makes ReleaseAll commit, rather than roll back,
// transactions still open at teardown.
func WithCommitOnRelease() Option {
	return func(o *cacheOptions) { o.rollbackOnRelease = false }
}

func generateConfig(options []Option) (cacheOptions, error) {
	computed := cacheOptions{
		rollbackOnRelease: defaultRollbackOnRelease,
	}
	for _, option := range options {
		option(&computed)
	}
	if computed.driver == nil {
		return computed, fmt.Errorf("a remote driver is required")
	}
	return computed, nil
}
