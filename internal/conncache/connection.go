// Package conncache owns the physical remote sessions: one shared
// Connection per (server, user) identity, created lazily, evicted on
// fatal error and enumerable for introspection.
package conncache

import (
	"context"
	"fmt"
	"sync"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// Identity names one cache entry: the remote server plus the user the
// session authenticates as.
type Identity struct {
	ServerName string
	Username   string
}

// ConnName renders the remote connection identifier, capped at the
// engine's identifier limit.
func (id Identity) ConnName() string {
	name := id.ServerName + "/" + id.Username
	if len(name) > ifxtype.ConnNameLen {
		name = name[:ifxtype.ConnNameLen]
	}
	return name
}

func (id Identity) String() string { return id.ConnName() }

// Less orders identities lexicographically, server first.
func (id Identity) Less(other Identity) bool {
	if id.ServerName != other.ServerName {
		return id.ServerName < other.ServerName
	}
	return id.Username < other.Username
}

// Connection is one physical session to the remote engine plus the
// transaction bookkeeping layered on it. Statement execution against one
// Connection is serialized by its callers; the internal mutex only makes
// the introspection view safe against concurrent readers.
type Connection struct {
	identity Identity
	session  remote.Session

	// txEnabled is false when the remote database was created without
	// logging; such a connection never issues transaction verbs and its
	// counters never advance.
	txEnabled bool

	mu           sync.Mutex
	open         bool
	dead         bool
	txInProgress bool
	numCommit    uint64
	numRollback  uint64

	// depthStack records the local nesting depths at which the remote
	// transaction was opened, outermost first.
	depthStack []uint
}

func newConnection(id Identity, session remote.Session, txEnabled bool) *Connection {
	return &Connection{identity: id, session: session, txEnabled: txEnabled, open: true}
}

// Identity returns the cache key of the connection.
func (c *Connection) Identity() Identity { return c.identity }

// Session exposes the underlying remote session.
func (c *Connection) Session() remote.Session { return c.session }

// TxEnabled reports whether the remote database supports transactions.
func (c *Connection) TxEnabled() bool { return c.txEnabled }

// TxInProgress reports whether a remote transaction is open.
func (c *Connection) TxInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txInProgress
}

// NumCommit returns the number of remote commits issued on this
// connection.
func (c *Connection) NumCommit() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numCommit
}

// NumRollback returns the number of remote rollbacks issued on this
// connection.
func (c *Connection) NumRollback() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numRollback
}

// Dead reports whether the connection has been marked unusable.
func (c *Connection) Dead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead
}

// MarkDead flags the connection for eviction. A dead connection is never
// silently reused; the cache rebuilds it on the next acquire.
func (c *Connection) MarkDead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

// DepthStack returns a copy of the recorded nesting depths.
func (c *Connection) DepthStack() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint(nil), c.depthStack...)
}

// BeginWork opens the remote transaction and records the local nesting
// depth it was opened at. On a non-logged connection it is a no-op: there
// is no remote transaction to open, so every statement stands alone.
func (c *Connection) BeginWork(ctx context.Context, depth uint) error {
	if !c.txEnabled {
		return nil
	}
	c.mu.Lock()
	if c.txInProgress {
		c.mu.Unlock()
		return fmt.Errorf("connection %s: remote transaction already in progress", c.identity)
	}
	c.mu.Unlock()
	if err := c.session.Begin(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.txInProgress = true
	c.depthStack = append(c.depthStack, depth)
	c.mu.Unlock()
	return nil
}

// CommitWork commits the remote transaction and advances the commit
// counter. A no-op on a non-logged connection.
func (c *Connection) CommitWork(ctx context.Context) error {
	if !c.txEnabled {
		return nil
	}
	c.mu.Lock()
	if !c.txInProgress {
		c.mu.Unlock()
		return fmt.Errorf("connection %s: no remote transaction in progress", c.identity)
	}
	c.mu.Unlock()
	if err := c.session.Commit(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.txInProgress = false
	c.numCommit++
	c.depthStack = c.depthStack[:0]
	c.mu.Unlock()
	txCommitCounter.WithLabelValues(c.identity.ServerName).Inc()
	return nil
}

// RollbackWork rolls back the remote transaction and advances the
// rollback counter. A no-op on a non-logged connection: statements on it
// have already committed individually and cannot be taken back.
func (c *Connection) RollbackWork(ctx context.Context) error {
	if !c.txEnabled {
		return nil
	}
	c.mu.Lock()
	if !c.txInProgress {
		c.mu.Unlock()
		return fmt.Errorf("connection %s: no remote transaction in progress", c.identity)
	}
	c.mu.Unlock()
	if err := c.session.Rollback(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.txInProgress = false
	c.numRollback++
	c.depthStack = c.depthStack[:0]
	c.mu.Unlock()
	txRollbackCounter.WithLabelValues(c.identity.ServerName).Inc()
	return nil
}

func (c *Connection) close(ctx context.Context) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	c.mu.Unlock()
	return c.session.Close(ctx)
}
