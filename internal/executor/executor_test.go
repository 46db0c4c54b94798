package executor

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credativ/informix-fdw-sub001/internal/cursor"
	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/internal/remote/memremote"
	"github.com/credativ/informix-fdw-sub001/pkg/fdw"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

var orderCols = []ifxtype.ColumnDescriptor{
	{Name: "id", Type: ifxtype.Integer},
	{Name: "item", Type: ifxtype.VarChar, Length: 32},
	{Name: "qty", Type: ifxtype.Integer},
}

func orderBinding() fdw.TableBinding {
	return fdw.TableBinding{LocalTable: "orders", RemoteTable: "orders", Columns: orderCols}
}

func orderValues(id int, item string, qty int) []ifxtype.Value {
	return []ifxtype.Value{
		ifxtype.Int64Value(int64(id)),
		ifxtype.TextValue(item, ""),
		ifxtype.Int64Value(int64(qty)),
	}
}

func setup(t *testing.T) (*memremote.Server, *Executor, *Table) {
	t.Helper()
	srv := memremote.NewServer()
	require.NoError(t, srv.CreateTable("orders", orderCols))
	require.NoError(t, srv.LoadRows("orders", [][]ifxtype.Datum{
		seedRow(1, "apples", 3),
		seedRow(2, "pears", 5),
	}))
	exec, err := New(srv.Driver())
	require.NoError(t, err)
	table, err := exec.Table(context.Background(), remote.ConnParams{
		ServerName: "testserver",
		Username:   "tester",
		TxEnabled:  true,
	}, orderBinding())
	require.NoError(t, err)
	return srv, exec, table
}

func seedRow(id int, item string, qty int) []ifxtype.Datum {
	return []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Integer, strconv.Itoa(id)),
		ifxtype.TextDatum(ifxtype.VarChar, item),
		ifxtype.TextDatum(ifxtype.Integer, strconv.Itoa(qty)),
	}
}

func firstRow(t *testing.T, table *Table) (fdw.Row, *cursor.Cursor) {
	t.Helper()
	cur, err := table.Scan(context.Background(), nil, cursor.ScanSpec{})
	require.NoError(t, err)
	row, ok, err := cur.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return row, cur
}

func TestInsertAutocommit(t *testing.T) {
	srv, _, table := setup(t)

	n, deferred, err := table.Insert(context.Background(), orderValues(3, "plums", 7))
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, int64(1), n)

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "plums", rows[2][1].Text)
}

func TestInsertValidatesShape(t *testing.T) {
	_, _, table := setup(t)

	_, _, err := table.Insert(context.Background(), orderValues(3, "plums", 7)[:2])
	require.Error(t, err)
	var mismatch fdw.ColumnMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestDirectUpdateByIdentity(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	row, cur := firstRow(t, table)
	require.True(t, row.HasRowID)
	require.NoError(t, table.CloseScan(ctx, cur))

	n, deferred, err := table.Update(ctx, fdw.ModifyPlan{Strategy: fdw.StrategyDirect}, nil, row,
		orderValues(1, "apples", 30))
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, int64(1), n)

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Equal(t, "30", rows[0][2].Text)
}

func TestDirectDeleteByIdentity(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	row, cur := firstRow(t, table)
	require.NoError(t, table.CloseScan(ctx, cur))

	n, _, err := table.Delete(ctx, fdw.ModifyPlan{Strategy: fdw.StrategyDirect}, nil, row)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "pears", rows[0][1].Text)
}

func TestDirectUpdateByPredicate(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	pred := fdw.Predicate{{Column: "qty", Op: fdw.OpGtOrEq, Value: ifxtype.Int64Value(4)}}
	n, deferred, err := table.UpdateWhere(ctx, pred, []Assignment{
		{Column: "qty", Value: ifxtype.Int64Value(0)},
	})
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, int64(1), n)

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Equal(t, "3", rows[0][2].Text)
	require.Equal(t, "0", rows[1][2].Text)
}

func TestDirectDeleteByPredicateMultiRow(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	pred := fdw.Predicate{{Column: "qty", Op: fdw.OpGtOrEq, Value: ifxtype.Int64Value(3)}}
	n, deferred, err := table.DeleteWhere(ctx, pred)
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, int64(2), n)

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestPredicateModifyWithoutRowIdentity(t *testing.T) {
	srv, exec, _ := setup(t)
	ctx := context.Background()

	binding := orderBinding()
	binding.DisableRowID = true
	table, err := exec.Table(ctx, remote.ConnParams{
		ServerName: "testserver",
		Username:   "tester",
		TxEnabled:  true,
	}, binding)
	require.NoError(t, err)

	coord := table.Coordinator()
	require.NoError(t, coord.BeginSubtransaction(ctx, 1))
	require.NoError(t, coord.BeginSubtransaction(ctx, 2))

	// A binding without rowid still modifies inside a subtransaction:
	// the statement targets the predicate, so it buffers like any other.
	pred := fdw.Predicate{{Column: "id", Op: fdw.OpEq, Value: ifxtype.Int64Value(2)}}
	_, deferred, err := table.UpdateWhere(ctx, pred, []Assignment{
		{Column: "qty", Value: ifxtype.Int64Value(50)},
	})
	require.NoError(t, err)
	require.True(t, deferred)

	require.NoError(t, coord.CommitSubtransaction(ctx, 2))
	require.NoError(t, coord.CommitTop(ctx))

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Equal(t, "50", rows[1][2].Text)
}

func TestPredicateModifyRequiresRemotableClauses(t *testing.T) {
	_, _, table := setup(t)
	ctx := context.Background()

	// Character clauses stay local on scans, so they cannot target a
	// direct modification.
	pred := fdw.Predicate{{Column: "item", Op: fdw.OpEq, Value: ifxtype.TextValue("pears", "")}}
	_, _, err := table.DeleteWhere(ctx, pred)
	require.Error(t, err)

	_, _, err = table.DeleteWhere(ctx, nil)
	require.Error(t, err)

	_, _, err = table.UpdateWhere(ctx, pred, nil)
	require.Error(t, err)
}

func TestCursorStrategyPositionedUpdate(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	coord := table.Coordinator()
	require.NoError(t, coord.BeginSubtransaction(ctx, 1))

	row, cur := firstRow(t, table)
	n, deferred, err := table.Update(ctx, fdw.ModifyPlan{Strategy: fdw.StrategyCursor}, cur, row,
		orderValues(1, "apples", 99))
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, int64(1), n)

	require.NoError(t, table.CloseScan(ctx, cur))
	require.NoError(t, coord.CommitTop(ctx))

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Equal(t, "99", rows[0][2].Text)
}

func TestUnsupportedPlanRejectedBeforeRemoteWork(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	coord := table.Coordinator()
	require.NoError(t, coord.BeginSubtransaction(ctx, 1))
	row, cur := firstRow(t, table)
	srv.ResetJournal()

	plan := fdw.ModifyPlan{Strategy: fdw.StrategyCursor, PreMaterialized: true}
	_, _, err := table.Update(ctx, plan, cur, row, orderValues(1, "apples", 99))
	require.Error(t, err)
	var planErr fdw.UnsupportedPlanError
	require.ErrorAs(t, err, &planErr)
	require.True(t, planErr.Plan().PreMaterialized)

	// The rejection happened before any remote statement.
	require.Empty(t, srv.Statements())

	require.NoError(t, table.CloseScan(ctx, cur))
	require.NoError(t, coord.RollbackTop(ctx))

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Equal(t, "3", rows[0][2].Text, "table must be unmodified")
}

func TestReorderingPlanRejected(t *testing.T) {
	_, _, table := setup(t)
	ctx := context.Background()

	row, cur := firstRow(t, table)
	defer table.CloseScan(ctx, cur)

	plan := fdw.ModifyPlan{Strategy: fdw.StrategyCursor, Reordering: true}
	_, _, err := table.Delete(ctx, plan, cur, row)
	var planErr fdw.UnsupportedPlanError
	require.ErrorAs(t, err, &planErr)
}

func TestDeferredInsertInSubtransaction(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	coord := table.Coordinator()
	require.NoError(t, coord.BeginSubtransaction(ctx, 1))
	require.NoError(t, coord.BeginSubtransaction(ctx, 2))

	n, deferred, err := table.Insert(ctx, orderValues(3, "plums", 7))
	require.NoError(t, err)
	require.True(t, deferred)
	require.Equal(t, int64(1), n)

	require.NoError(t, coord.RollbackTo(ctx, 1))
	require.NoError(t, coord.CommitTop(ctx))

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Len(t, rows, 2, "rolled-back deferred insert must never reach the remote table")
}

func TestPositionedModifyDeferredByIdentity(t *testing.T) {
	srv, _, table := setup(t)
	ctx := context.Background()

	coord := table.Coordinator()
	require.NoError(t, coord.BeginSubtransaction(ctx, 1))
	row, cur := firstRow(t, table)
	require.NoError(t, coord.BeginSubtransaction(ctx, 2))

	// Inside a subtransaction the cursor position cannot outlive the
	// buffer, so the modification is retargeted by row identity.
	n, deferred, err := table.Update(ctx, fdw.ModifyPlan{Strategy: fdw.StrategyCursor}, cur, row,
		orderValues(1, "apples", 42))
	require.NoError(t, err)
	require.True(t, deferred)
	require.Equal(t, int64(1), n)

	require.NoError(t, coord.CommitSubtransaction(ctx, 2))
	require.NoError(t, table.CloseScan(ctx, cur))
	require.NoError(t, coord.CommitTop(ctx))

	rows, err := srv.TableRows("orders")
	require.NoError(t, err)
	require.Equal(t, "42", rows[0][2].Text)
}

func TestQueryBindingRefusesModification(t *testing.T) {
	_, exec, _ := setup(t)
	ctx := context.Background()

	table, err := exec.Table(ctx, remote.ConnParams{ServerName: "testserver", Username: "tester"},
		fdw.TableBinding{
			LocalTable: "order_view",
			Query:      "SELECT id, item, qty FROM orders",
			Columns:    orderCols,
		})
	require.NoError(t, err)

	_, _, err = table.Insert(ctx, orderValues(9, "figs", 1))
	require.Error(t, err)
}

func TestConnectionsIntrospection(t *testing.T) {
	_, exec, _ := setup(t)
	ctx := context.Background()

	_, err := exec.Table(ctx, remote.ConnParams{ServerName: "testserver", Username: "admin"}, orderBinding())
	require.NoError(t, err)

	entries := exec.Connections()
	require.Len(t, entries, 2)
	require.Equal(t, "admin", entries[0].Identity.Username)
	require.Equal(t, "tester", entries[1].Identity.Username)
}

func TestCoordinatorReusedPerIdentity(t *testing.T) {
	_, exec, table := setup(t)
	ctx := context.Background()

	again, err := exec.Table(ctx, remote.ConnParams{ServerName: "testserver", Username: "tester"}, orderBinding())
	require.NoError(t, err)
	require.Same(t, table.Coordinator(), again.Coordinator())
}

func TestAtomicModifications(t *testing.T) {
	srv, _, table := setup(t)
	require.True(t, table.AtomicModifications())
	srv.SetAtomicStatements(false)
	require.False(t, table.AtomicModifications())
}

func TestShutdownReleasesConnections(t *testing.T) {
	_, exec, table := setup(t)
	ctx := context.Background()

	require.NoError(t, table.Coordinator().BeginSubtransaction(ctx, 1))
	require.NoError(t, table.Coordinator().EnsureTransaction(ctx))

	require.NoError(t, exec.Shutdown(ctx))
	require.Empty(t, exec.Connections())
}
