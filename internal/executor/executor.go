// Package executor is the entry point the local engine drives: it hands
// out per-connection transaction coordinators and per-binding table
// handles, routing scans and modifications through the connection cache,
// the cursor engine and the transaction coordinator.
package executor

import (
	"context"
	"sync"

	"github.com/credativ/informix-fdw-sub001/internal/conncache"
	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/internal/txn"
	"github.com/credativ/informix-fdw-sub001/pkg/fdw"
)

// Executor owns the connection cache and one transaction coordinator per
// live connection identity.
type Executor struct {
	cache *conncache.Cache

	mu     sync.Mutex
	coords map[conncache.Identity]*txn.Coordinator
}

// New constructs an executor over a remote driver.
func New(driver remote.Driver) (*Executor, error) {
	cache, err := conncache.NewCache(conncache.WithDriver(driver))
	if err != nil {
		return nil, err
	}
	return &Executor{
		cache:  cache,
		coords: make(map[conncache.Identity]*txn.Coordinator),
	}, nil
}

// Coordinator returns the transaction coordinator for the connection the
// params identify, acquiring the connection first if needed. A
// coordinator whose connection died is discarded and rebuilt on a fresh
// connection.
func (e *Executor) Coordinator(ctx context.Context, params remote.ConnParams) (*txn.Coordinator, error) {
	conn, err := e.cache.Acquire(ctx, params)
	if err != nil {
		return nil, err
	}
	id := conn.Identity()

	e.mu.Lock()
	defer e.mu.Unlock()
	if coord, ok := e.coords[id]; ok && coord.Connection() == conn {
		return coord, nil
	}
	coord := txn.NewCoordinator(e.cache, conn)
	e.coords[id] = coord
	return coord, nil
}

// Table returns a handle binding table operations to one coordinator.
func (e *Executor) Table(ctx context.Context, params remote.ConnParams, binding fdw.TableBinding) (*Table, error) {
	if err := binding.Validate(); err != nil {
		return nil, err
	}
	coord, err := e.Coordinator(ctx, params)
	if err != nil {
		return nil, err
	}
	return newTable(coord, binding), nil
}

// Connections returns the introspection view of the connection cache,
// ordered by identity.
func (e *Executor) Connections() []conncache.Entry {
	return e.cache.List()
}

// Shutdown finishes open transactions and closes every connection.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.coords = make(map[conncache.Identity]*txn.Coordinator)
	e.mu.Unlock()
	return e.cache.ReleaseAll(ctx)
}
