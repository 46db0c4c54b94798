// Package txn maps the local engine's nested transaction and savepoint
// stack onto the remote engine's single-level transaction. Nesting is a
// purely local illusion: savepoints are bookkeeping over cursor and
// buffered-modification state, and the remote engine only ever sees
// BEGIN, COMMIT and ROLLBACK at the outermost boundary.
package txn

import (
	"context"
	"fmt"

	"github.com/credativ/informix-fdw-sub001/internal/conncache"
	"github.com/credativ/informix-fdw-sub001/internal/cursor"
	log "github.com/credativ/informix-fdw-sub001/internal/logging"
	"github.com/credativ/informix-fdw-sub001/pkg/fdw"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// bufferedStmt is a modification deferred until the commit of its
// subtransaction is certain. Deferring keeps compensation unnecessary: a
// savepoint rollback discards buffers instead of undoing remote work.
type bufferedStmt struct {
	depth uint
	query string
	args  []ifxtype.Datum
}

type openCursor struct {
	cur   *cursor.Cursor
	depth uint

	// auto marks a cursor running under autocommit emulation; closing
	// the last such cursor commits the implicit remote transaction.
	auto bool
}

// Coordinator drives one Connection's transaction state in lockstep with
// the local engine's nesting depth.
type Coordinator struct {
	cache *conncache.Cache
	conn  *conncache.Connection

	localDepth uint
	cursors    []openCursor
	buffered   []bufferedStmt
}

// NewCoordinator wraps a cached connection.
func NewCoordinator(cache *conncache.Cache, conn *conncache.Connection) *Coordinator {
	return &Coordinator{cache: cache, conn: conn}
}

// Connection returns the coordinated connection.
func (tc *Coordinator) Connection() *conncache.Connection { return tc.conn }

// Depth returns the current local nesting depth, 0 outside any local
// transaction.
func (tc *Coordinator) Depth() uint { return tc.localDepth }

// BeginSubtransaction records entry into a local (sub)transaction at the
// given depth. No remote statement is issued: the remote transaction
// opens lazily on first remote access, and savepoints have no remote
// counterpart at all.
func (tc *Coordinator) BeginSubtransaction(ctx context.Context, depth uint) error {
	if depth != tc.localDepth+1 {
		return fmt.Errorf("subtransaction depth %d does not nest under current depth %d", depth, tc.localDepth)
	}
	tc.localDepth = depth
	log.Ctx(ctx).Trace().Uint("depth", depth).Msg("entered local subtransaction")
	return nil
}

// EnsureTransaction opens the remote transaction if the local engine is
// inside a transaction and none is open yet on this connection.
func (tc *Coordinator) EnsureTransaction(ctx context.Context) error {
	if tc.localDepth == 0 || tc.conn.TxInProgress() {
		return nil
	}
	if err := tc.conn.BeginWork(ctx, tc.localDepth); err != nil {
		tc.failConnection(ctx, err)
		return err
	}
	return nil
}

// CommitSubtransaction commits the local subtransaction at depth > 1:
// effects buffered at that depth become attributable to the parent, and
// reach the remote engine once certainty cascades down to depth 1.
func (tc *Coordinator) CommitSubtransaction(ctx context.Context, depth uint) error {
	if depth == 1 {
		return tc.CommitTop(ctx)
	}
	if depth != tc.localDepth {
		return fmt.Errorf("commit of depth %d does not match current depth %d", depth, tc.localDepth)
	}
	for i := range tc.buffered {
		if tc.buffered[i].depth == depth {
			tc.buffered[i].depth = depth - 1
		}
	}
	for i := range tc.cursors {
		if tc.cursors[i].depth == depth {
			tc.cursors[i].depth = depth - 1
		}
	}
	tc.localDepth = depth - 1
	if tc.localDepth == 1 {
		return tc.flush(ctx)
	}
	return nil
}

// RollbackTo abandons every subtransaction deeper than depth. Cursors
// opened deeper are closed and unsent buffered effects are discarded; no
// remote transaction statement of any kind is issued.
func (tc *Coordinator) RollbackTo(ctx context.Context, depth uint) error {
	if depth >= tc.localDepth {
		return fmt.Errorf("rollback target depth %d is not below current depth %d", depth, tc.localDepth)
	}
	kept := tc.buffered[:0]
	discarded := 0
	for _, b := range tc.buffered {
		if b.depth > depth {
			discarded++
			continue
		}
		kept = append(kept, b)
	}
	tc.buffered = kept

	var firstErr error
	remaining := tc.cursors[:0]
	for _, oc := range tc.cursors {
		if oc.depth > depth {
			if err := oc.cur.Close(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		remaining = append(remaining, oc)
	}
	tc.cursors = remaining
	tc.localDepth = depth
	log.Ctx(ctx).Debug().
		Uint("depth", depth).
		Int("discarded_statements", discarded).
		Msg("rolled back to savepoint locally")
	return firstErr
}

// CommitTop commits the outermost local transaction: pending buffers are
// flushed, non-held cursors closed, and the remote transaction committed.
func (tc *Coordinator) CommitTop(ctx context.Context) error {
	if tc.localDepth == 0 {
		return fmt.Errorf("no local transaction in progress")
	}
	if err := tc.flush(ctx); err != nil {
		return err
	}
	tc.closeCursors(ctx, false)
	tc.localDepth = 0
	if !tc.conn.TxInProgress() {
		// The transaction never touched the remote engine; the counters
		// stay untouched.
		return nil
	}
	if err := tc.conn.CommitWork(ctx); err != nil {
		tc.failConnection(ctx, err)
		return err
	}
	return nil
}

// RollbackTop rolls back the outermost local transaction. Every cursor
// dies, held or not; buffered effects are discarded unsent.
func (tc *Coordinator) RollbackTop(ctx context.Context) error {
	if tc.localDepth == 0 {
		return fmt.Errorf("no local transaction in progress")
	}
	tc.buffered = nil
	tc.closeCursors(ctx, true)
	tc.localDepth = 0
	if !tc.conn.TxInProgress() {
		return nil
	}
	if err := tc.conn.RollbackWork(ctx); err != nil {
		tc.failConnection(ctx, err)
		return err
	}
	return nil
}

// closeCursors closes registered cursors, keeping held ones unless
// includeHeld is set.
func (tc *Coordinator) closeCursors(ctx context.Context, includeHeld bool) {
	remaining := tc.cursors[:0]
	for _, oc := range tc.cursors {
		if oc.cur.Held() && !includeHeld {
			remaining = append(remaining, oc)
			continue
		}
		if err := oc.cur.Close(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("cursor", oc.cur.Name()).Msg("error closing cursor at transaction end")
		}
	}
	tc.cursors = remaining
}

// flush sends every buffer whose commit is certain (depth 1) in original
// issue order.
func (tc *Coordinator) flush(ctx context.Context) error {
	if len(tc.buffered) == 0 {
		return nil
	}
	if err := tc.EnsureTransaction(ctx); err != nil {
		return err
	}
	session := tc.conn.Session()
	kept := tc.buffered[:0]
	for i, b := range tc.buffered {
		if b.depth > 1 {
			kept = append(kept, b)
			continue
		}
		if _, err := session.Exec(ctx, b.query, b.args); err != nil {
			// The enclosing transaction fails as a whole; nothing after
			// the failed statement is sent.
			tc.buffered = append(kept, tc.buffered[i+1:]...)
			return err
		}
	}
	tc.buffered = kept
	return nil
}

// failConnection marks the connection dead and evicts it so the next
// acquire rebuilds a fresh session.
func (tc *Coordinator) failConnection(ctx context.Context, cause error) {
	log.Ctx(ctx).Error().Err(cause).Stringer("connection", tc.conn.Identity()).Msg("remote transaction failure, evicting connection")
	tc.conn.MarkDead()
	tc.cache.Evict(ctx, tc.conn.Identity())
}

// Scan opens a cursor for the binding under the current transaction
// state. Outside any local transaction an implicit remote transaction is
// opened and committed when the scan closes.
func (tc *Coordinator) Scan(ctx context.Context, binding fdw.TableBinding, pred fdw.Predicate, spec cursor.ScanSpec) (*cursor.Cursor, error) {
	auto := tc.localDepth == 0
	if auto {
		if !tc.conn.TxInProgress() {
			if err := tc.conn.BeginWork(ctx, 0); err != nil {
				tc.failConnection(ctx, err)
				return nil, err
			}
		}
	} else if err := tc.EnsureTransaction(ctx); err != nil {
		return nil, err
	}
	spec.Depth = tc.localDepth
	cur, err := cursor.Open(ctx, tc.conn, binding, pred, spec)
	if err != nil {
		if auto {
			tc.finishAutocommit(ctx, false)
		}
		return nil, err
	}
	tc.cursors = append(tc.cursors, openCursor{cur: cur, depth: tc.localDepth, auto: auto})
	return cur, nil
}

// CloseScan closes a cursor previously opened through Scan.
func (tc *Coordinator) CloseScan(ctx context.Context, cur *cursor.Cursor) error {
	err := cur.Close(ctx)
	remaining := tc.cursors[:0]
	finishAuto := false
	for _, oc := range tc.cursors {
		if oc.cur == cur {
			finishAuto = oc.auto
			continue
		}
		remaining = append(remaining, oc)
	}
	tc.cursors = remaining
	if finishAuto && !tc.hasAutoCursors() {
		tc.finishAutocommit(ctx, err == nil)
	}
	return err
}

func (tc *Coordinator) hasAutoCursors() bool {
	for _, oc := range tc.cursors {
		if oc.auto {
			return true
		}
	}
	return false
}

func (tc *Coordinator) finishAutocommit(ctx context.Context, commit bool) {
	if !tc.conn.TxInProgress() {
		return
	}
	var err error
	if commit {
		err = tc.conn.CommitWork(ctx)
	} else {
		err = tc.conn.RollbackWork(ctx)
	}
	if err != nil {
		tc.failConnection(ctx, err)
	}
}

// ExecModify routes one modification statement. At depth 0 it runs under
// autocommit emulation; at depth 1 it is sent inside the remote
// transaction; deeper, it is buffered until its subtransaction commit is
// certain. The bool result reports deferral: a deferred statement has no
// affected count yet.
func (tc *Coordinator) ExecModify(ctx context.Context, query string, args []ifxtype.Datum) (int64, bool, error) {
	switch {
	case tc.localDepth == 0:
		var affected int64
		err := tc.autocommit(ctx, func() error {
			var execErr error
			affected, execErr = tc.conn.Session().Exec(ctx, query, args)
			return execErr
		})
		return affected, false, err

	case tc.localDepth == 1:
		if err := tc.EnsureTransaction(ctx); err != nil {
			return 0, false, err
		}
		affected, err := tc.conn.Session().Exec(ctx, query, args)
		return affected, false, err

	default:
		if err := tc.EnsureTransaction(ctx); err != nil {
			return 0, false, err
		}
		tc.buffered = append(tc.buffered, bufferedStmt{depth: tc.localDepth, query: query, args: args})
		return 0, true, nil
	}
}

// autocommit wraps fn in an implicit remote transaction, committed on
// success and rolled back on error.
func (tc *Coordinator) autocommit(ctx context.Context, fn func() error) error {
	if err := tc.conn.BeginWork(ctx, 0); err != nil {
		tc.failConnection(ctx, err)
		return err
	}
	if err := fn(); err != nil {
		tc.finishAutocommit(ctx, false)
		return err
	}
	if err := tc.conn.CommitWork(ctx); err != nil {
		tc.failConnection(ctx, err)
		return err
	}
	return nil
}
