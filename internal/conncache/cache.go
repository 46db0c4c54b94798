package conncache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"

	log "github.com/credativ/informix-fdw-sub001/internal/logging"
	"github.com/credativ/informix-fdw-sub001/internal/remote"
)

// Cache is the process-wide registry of remote connections. It is an
// explicit, injectable object with its own lifecycle so independent
// registries can coexist, notably under test.
type Cache struct {
	conns *xsync.Map[Identity, *Connection]
	opts  cacheOptions
}

// NewCache constructs an empty registry.
func NewCache(options ...Option) (*Cache, error) {
	opts, err := generateConfig(options)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize connection cache: %w", err)
	}
	return &Cache{
		conns: xsync.NewMap[Identity, *Connection](),
		opts:  opts,
	}, nil
}

// Entry is one row of the introspection view.
type Entry struct {
	Identity     Identity
	TxInProgress bool
	NumCommit    uint64
	NumRollback  uint64
}

// Acquire returns the live connection registered for the identity in
// params, establishing it first if none exists. Two concurrent acquires
// of the same identity never produce two physical sessions. A failed
// establishment registers nothing and surfaces the error.
func (c *Cache) Acquire(ctx context.Context, params remote.ConnParams) (*Connection, error) {
	id := Identity{ServerName: params.ServerName, Username: params.Username}

	for attempt := 0; ; attempt++ {
		var connectErr error
		conn, _ := c.conns.LoadOrCompute(id, func() (*Connection, bool) {
			session, err := c.opts.driver.Connect(ctx, params)
			if err != nil {
				connectErr = err
				return nil, true
			}
			connectCounter.WithLabelValues(id.ServerName).Inc()
			log.Ctx(ctx).Debug().Stringer("connection", id).Msg("established remote connection")
			return newConnection(id, session, params.TxEnabled), false
		})
		if connectErr != nil {
			if !errors.As(connectErr, &remote.ConnectivityError{}) {
				connectErr = remote.NewConnectivityErr(id.ServerName, connectErr)
			}
			return nil, connectErr
		}
		if !conn.Dead() {
			return conn, nil
		}
		// A dead entry left behind by a racing failure: evict and
		// rebuild exactly once.
		c.Evict(ctx, id)
		if attempt > 0 {
			return nil, remote.NewConnectivityErr(id.ServerName, fmt.Errorf("connection repeatedly marked dead"))
		}
	}
}

// Evict closes and removes the connection registered for id, if any.
func (c *Cache) Evict(ctx context.Context, id Identity) {
	conn, ok := c.conns.LoadAndDelete(id)
	if !ok {
		return
	}
	evictionCounter.WithLabelValues(id.ServerName).Inc()
	if err := conn.close(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Stringer("connection", id).Msg("error closing evicted connection")
	}
}

// List returns the introspection view, one entry per live connection,
// ordered by identity.
func (c *Cache) List() []Entry {
	var entries []Entry
	c.conns.Range(func(id Identity, conn *Connection) bool {
		entries = append(entries, Entry{
			Identity:     id,
			TxInProgress: conn.TxInProgress(),
			NumCommit:    conn.NumCommit(),
			NumRollback:  conn.NumRollback(),
		})
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identity.Less(entries[j].Identity)
	})
	return entries
}

// ReleaseAll finishes any open transaction on every connection and closes
// it, emptying the registry. Used at process or session teardown.
func (c *Cache) ReleaseAll(ctx context.Context) error {
	var firstErr error
	c.conns.Range(func(id Identity, conn *Connection) bool {
		if conn.TxInProgress() {
			var err error
			if c.opts.rollbackOnRelease {
				err = conn.RollbackWork(ctx)
			} else {
				err = conn.CommitWork(ctx)
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := conn.close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.conns.Delete(id)
		return true
	})
	return firstErr
}

// Len returns the number of registered connections.
func (c *Cache) Len() int {
	n := 0
	c.conns.Range(func(Identity, *Connection) bool {
		n++
		return true
	})
	return n
}
