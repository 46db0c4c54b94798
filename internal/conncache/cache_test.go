package conncache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/internal/remote/memremote"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

func newTestCache(t *testing.T) (*Cache, *memremote.Server) {
	t.Helper()
	srv := memremote.NewServer()
	require.NoError(t, srv.CreateTable("items", []ifxtype.ColumnDescriptor{
		{Name: "id", Type: ifxtype.Integer},
	}))
	cache, err := NewCache(WithDriver(srv.Driver()))
	require.NoError(t, err)
	return cache, srv
}

func params(server, user string) remote.ConnParams {
	return remote.ConnParams{ServerName: server, Username: user, TxEnabled: true}
}

func TestNewCacheRequiresDriver(t *testing.T) {
	_, err := NewCache()
	require.Error(t, err)
}

func TestAcquireSharesConnection(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	second, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.Same(t, first, second)

	other, err := cache.Acquire(ctx, params("srv1", "bob"))
	require.NoError(t, err)
	require.NotSame(t, first, other)
	require.Equal(t, 2, cache.Len())
}

func TestAcquireConcurrentSingleSession(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	srv.ResetJournal()

	const workers = 16
	conns := make([]*Connection, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			conns[slot], errs[slot] = cache.Acquire(ctx, params("srv1", "alice"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, conns[0], conns[i])
	}
	// Exactly one physical connect reached the server.
	connects := 0
	for _, entry := range srv.Statements() {
		if entry == "connect srv1/alice" {
			connects++
		}
	}
	require.Equal(t, 1, connects)
}

func TestAcquireFailureRegistersNothing(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	boom := errors.New("network unreachable")
	srv.FailConnections(boom)
	_, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.Error(t, err)
	var connErr remote.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, 0, cache.Len())

	// Recovery: the next acquire establishes a fresh session.
	srv.FailConnections(nil)
	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, 1, cache.Len())
}

func TestDeadConnectionRebuilt(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	first.MarkDead()

	second, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.False(t, second.Dead())
}

func TestEvict(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	cache.Evict(ctx, conn.Identity())
	require.Equal(t, 0, cache.Len())

	// Evicting an absent identity is a no-op.
	cache.Evict(ctx, Identity{ServerName: "nosuch", Username: "nobody"})
}

func TestListOrdering(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	for _, p := range []remote.ConnParams{
		params("srv2", "zoe"),
		params("srv1", "bob"),
		params("srv1", "alice"),
	} {
		_, err := cache.Acquire(ctx, p)
		require.NoError(t, err)
	}

	entries := cache.List()
	require.Len(t, entries, 3)
	require.Equal(t, Identity{ServerName: "srv1", Username: "alice"}, entries[0].Identity)
	require.Equal(t, Identity{ServerName: "srv1", Username: "bob"}, entries[1].Identity)
	require.Equal(t, Identity{ServerName: "srv2", Username: "zoe"}, entries[2].Identity)
}

func TestListReflectsTransactionState(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.NoError(t, conn.BeginWork(ctx, 1))

	entries := cache.List()
	require.Len(t, entries, 1)
	require.True(t, entries[0].TxInProgress)
	require.Equal(t, uint64(0), entries[0].NumCommit)

	require.NoError(t, conn.CommitWork(ctx))
	entries = cache.List()
	require.False(t, entries[0].TxInProgress)
	require.Equal(t, uint64(1), entries[0].NumCommit)
}

func TestCommitRollbackCounters(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)

	require.NoError(t, conn.BeginWork(ctx, 1))
	require.NoError(t, conn.CommitWork(ctx))
	require.NoError(t, conn.BeginWork(ctx, 1))
	require.NoError(t, conn.RollbackWork(ctx))
	require.NoError(t, conn.BeginWork(ctx, 1))
	require.NoError(t, conn.CommitWork(ctx))

	require.Equal(t, uint64(2), conn.NumCommit())
	require.Equal(t, uint64(1), conn.NumRollback())
}

func TestNonLoggedConnectionSkipsTransactionVerbs(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, remote.ConnParams{ServerName: "srv1", Username: "alice"})
	require.NoError(t, err)
	require.False(t, conn.TxEnabled())
	srv.ResetJournal()

	// No remote transaction exists on a non-logged database: the verbs
	// are skipped, the state never changes and the counters stay at
	// zero.
	require.NoError(t, conn.BeginWork(ctx, 1))
	require.False(t, conn.TxInProgress())
	require.NoError(t, conn.CommitWork(ctx))
	require.NoError(t, conn.BeginWork(ctx, 1))
	require.NoError(t, conn.RollbackWork(ctx))

	require.Equal(t, uint64(0), conn.NumCommit())
	require.Equal(t, uint64(0), conn.NumRollback())
	require.Empty(t, srv.Statements())
}

func TestBeginWorkRejectsNesting(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.NoError(t, conn.BeginWork(ctx, 1))
	require.Error(t, conn.BeginWork(ctx, 2))
}

func TestReleaseAllRollsBackOpenTransactions(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.NoError(t, conn.BeginWork(ctx, 1))

	srv.ResetJournal()
	require.NoError(t, cache.ReleaseAll(ctx))
	require.Equal(t, 0, cache.Len())
	require.Contains(t, srv.Statements(), "rollback work")
}

func TestReleaseAllCommitOption(t *testing.T) {
	srv := memremote.NewServer()
	require.NoError(t, srv.CreateTable("items", []ifxtype.ColumnDescriptor{
		{Name: "id", Type: ifxtype.Integer},
	}))
	cache, err := NewCache(WithDriver(srv.Driver()), WithCommitOnRelease())
	require.NoError(t, err)
	ctx := context.Background()

	conn, err := cache.Acquire(ctx, params("srv1", "alice"))
	require.NoError(t, err)
	require.NoError(t, conn.BeginWork(ctx, 1))

	srv.ResetJournal()
	require.NoError(t, cache.ReleaseAll(ctx))
	require.Contains(t, srv.Statements(), "commit work")
}

func TestConnName(t *testing.T) {
	id := Identity{ServerName: "srv1", Username: "alice"}
	require.Equal(t, "srv1/alice", id.ConnName())

	long := Identity{ServerName: string(make([]byte, ifxtype.ConnNameLen)), Username: "x"}
	require.Len(t, long.ConnName(), ifxtype.ConnNameLen)
}
