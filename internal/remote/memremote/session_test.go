package memremote

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

var accountCols = []ifxtype.ColumnDescriptor{
	{Name: "id", Type: ifxtype.Integer},
	{Name: "name", Type: ifxtype.VarChar, Length: 32},
	{Name: "balance", Type: ifxtype.Decimal, Precision: 12, Scale: 2},
}

func accountRow(id int, name, balance string) []ifxtype.Datum {
	return []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Integer, strconv.Itoa(id)),
		ifxtype.TextDatum(ifxtype.VarChar, name),
		ifxtype.TextDatum(ifxtype.Decimal, balance),
	}
}

func newAccountServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer()
	require.NoError(t, srv.CreateTable("accounts", accountCols))
	require.NoError(t, srv.LoadRows("accounts", [][]ifxtype.Datum{
		accountRow(1, "alice", "100.00"),
		accountRow(2, "bob", "250.50"),
		accountRow(3, "carol", "0.00"),
	}))
	return srv
}

func connect(t *testing.T, srv *Server) remote.Session {
	t.Helper()
	session, err := srv.Driver().Connect(context.Background(), remote.ConnParams{
		ServerName: "testserver",
		Username:   "tester",
		TxEnabled:  true,
	})
	require.NoError(t, err)
	return session
}

func TestConnectRequiresIdentity(t *testing.T) {
	srv := NewServer()
	_, err := srv.Driver().Connect(context.Background(), remote.ConnParams{})
	require.Error(t, err)
	var connErr remote.ConnectivityError
	require.ErrorAs(t, err, &connErr)
}

func TestDescribeShape(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT id, name, balance, rowid FROM accounts"))
	shape, err := session.Describe(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, shape, 4)
	require.Equal(t, "id", shape[0].Name)
	require.Equal(t, ifxtype.Decimal, shape[2].Type)
	require.Equal(t, "rowid", shape[3].Name)
	require.Equal(t, ifxtype.Integer, shape[3].Type)
}

func TestDescribeDerivedTable(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT * FROM (SELECT id, name FROM accounts) t"))
	shape, err := session.Describe(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, shape, 2)
	require.Equal(t, "name", shape[1].Name)

	// rowid does not pass through a derived table.
	require.NoError(t, session.Prepare(ctx, "s2", "SELECT rowid FROM (SELECT id FROM accounts) t"))
	_, err = session.Describe(ctx, "s2")
	require.Error(t, err)
}

func TestForwardCursorFetch(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT name FROM accounts"))
	require.NoError(t, session.Declare(ctx, "c1", "s1", false, false))
	require.NoError(t, session.Open(ctx, "c1", nil))

	var names []string
	for {
		row, err := session.Fetch(ctx, "c1", remote.FetchNext, 0)
		require.NoError(t, err)
		if row == nil {
			break
		}
		require.Len(t, row, 1)
		names = append(names, row[0].Text)
	}
	require.Equal(t, []string{"alice", "bob", "carol"}, names)

	// Forward-only cursors reject every direction except next/current.
	_, err := session.Fetch(ctx, "c1", remote.FetchPrior, 0)
	require.Error(t, err)
	var protoErr remote.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, "42000", protoErr.SQLState())
}

func TestScrollCursorAbsolute(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT name FROM accounts"))
	require.NoError(t, session.Declare(ctx, "c1", "s1", true, false))
	require.NoError(t, session.Open(ctx, "c1", nil))

	row, err := session.Fetch(ctx, "c1", remote.FetchAbsolute, 3)
	require.NoError(t, err)
	require.Equal(t, "carol", row[0].Text)

	row, err = session.Fetch(ctx, "c1", remote.FetchPrior, 0)
	require.NoError(t, err)
	require.Equal(t, "bob", row[0].Text)

	row, err = session.Fetch(ctx, "c1", remote.FetchFirst, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", row[0].Text)

	// Past-the-end lands on end of data, not an error.
	row, err = session.Fetch(ctx, "c1", remote.FetchAbsolute, 99)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestParameterizedWhere(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT name FROM accounts WHERE id = ? OR id = ?"))
	require.NoError(t, session.Declare(ctx, "c1", "s1", false, false))
	require.NoError(t, session.Open(ctx, "c1", []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Integer, "1"),
		ifxtype.TextDatum(ifxtype.Integer, "3"),
	}))

	var names []string
	for {
		row, err := session.Fetch(ctx, "c1", remote.FetchNext, 0)
		require.NoError(t, err)
		if row == nil {
			break
		}
		names = append(names, row[0].Text)
	}
	require.Equal(t, []string{"alice", "carol"}, names)
}

func TestOpenArgumentCount(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT name FROM accounts WHERE id = ?"))
	require.NoError(t, session.Declare(ctx, "c1", "s1", false, false))
	err := session.Open(ctx, "c1", nil)
	require.Error(t, err)
	var protoErr remote.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, "07001", protoErr.SQLState())
}

func TestExecInsertUpdateDelete(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	n, err := session.Exec(ctx, "INSERT INTO accounts (id,name,balance) VALUES (?,?,?)",
		accountRow(4, "dave", "75.00"))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = session.Exec(ctx, "UPDATE accounts SET balance = ? WHERE name = ?", []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Decimal, "80.00"),
		ifxtype.TextDatum(ifxtype.VarChar, "dave"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = session.Exec(ctx, "DELETE FROM accounts WHERE id = ?", []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Integer, "2"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := srv.TableRows("accounts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestExecSelectRejected(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)

	_, err := session.Exec(context.Background(), "SELECT name FROM accounts", nil)
	require.Error(t, err)
}

func TestPositionedUpdate(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT id, name, balance FROM accounts"))
	require.NoError(t, session.Declare(ctx, "c1", "s1", false, false))
	require.NoError(t, session.Open(ctx, "c1", nil))

	// Position on bob's row.
	_, err := session.Fetch(ctx, "c1", remote.FetchNext, 0)
	require.NoError(t, err)
	row, err := session.Fetch(ctx, "c1", remote.FetchNext, 0)
	require.NoError(t, err)
	require.Equal(t, "bob", row[1].Text)

	n, err := session.Exec(ctx, "UPDATE accounts SET balance = ? WHERE CURRENT OF c1", []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Decimal, "999.99"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := srv.TableRows("accounts")
	require.NoError(t, err)
	require.Equal(t, "999.99", rows[1][2].Text)
}

func TestPositionedDeleteRequiresPosition(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Prepare(ctx, "s1", "SELECT id FROM accounts"))
	require.NoError(t, session.Declare(ctx, "c1", "s1", false, false))
	require.NoError(t, session.Open(ctx, "c1", nil))

	_, err := session.Exec(ctx, "DELETE FROM accounts WHERE CURRENT OF c1", nil)
	require.Error(t, err)
	var protoErr remote.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, "24000", protoErr.SQLState())
}

func TestTransactionVisibility(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Begin(ctx))
	_, err := session.Exec(ctx, "INSERT INTO accounts (id,name,balance) VALUES (?,?,?)",
		accountRow(4, "dave", "10.00"))
	require.NoError(t, err)

	// Uncommitted work is invisible outside the transaction.
	rows, err := srv.TableRows("accounts")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, session.Commit(ctx))
	rows, err = srv.TableRows("accounts")
	require.NoError(t, err)
	require.Len(t, rows, 4)
}

func TestRollbackDiscardsWork(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Begin(ctx))
	_, err := session.Exec(ctx, "DELETE FROM accounts WHERE id = ?", []ifxtype.Datum{
		ifxtype.TextDatum(ifxtype.Integer, "1"),
	})
	require.NoError(t, err)
	require.NoError(t, session.Rollback(ctx))

	rows, err := srv.TableRows("accounts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestNestedBeginRejected(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Begin(ctx))
	err := session.Begin(ctx)
	require.Error(t, err)
	var protoErr remote.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, "25001", protoErr.SQLState())
}

func TestHoldCursorSurvivesCommit(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Begin(ctx))
	require.NoError(t, session.Prepare(ctx, "s1", "SELECT name FROM accounts"))
	require.NoError(t, session.Declare(ctx, "held", "s1", false, true))
	require.NoError(t, session.Open(ctx, "held", nil))
	require.NoError(t, session.Declare(ctx, "plain", "s1", false, false))
	require.NoError(t, session.Open(ctx, "plain", nil))

	require.NoError(t, session.Commit(ctx))

	row, err := session.Fetch(ctx, "held", remote.FetchNext, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", row[0].Text)

	_, err = session.Fetch(ctx, "plain", remote.FetchNext, 0)
	require.Error(t, err)
}

func TestNoCursorSurvivesRollback(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, session.Begin(ctx))
	require.NoError(t, session.Prepare(ctx, "s1", "SELECT name FROM accounts"))
	require.NoError(t, session.Declare(ctx, "held", "s1", false, true))
	require.NoError(t, session.Open(ctx, "held", nil))
	require.NoError(t, session.Rollback(ctx))

	_, err := session.Fetch(ctx, "held", remote.FetchNext, 0)
	require.Error(t, err)
}

func TestNonLoggedSessionIgnoresTransactionVerbs(t *testing.T) {
	srv := newAccountServer(t)
	ctx := context.Background()
	session, err := srv.Driver().Connect(ctx, remote.ConnParams{
		ServerName: "testserver",
		Username:   "tester",
		TxEnabled:  false,
	})
	require.NoError(t, err)

	// Without logging, the verbs are accepted and ignored: the insert
	// commits on its own and the rollback takes nothing back.
	require.NoError(t, session.Begin(ctx))
	_, err = session.Exec(ctx, "INSERT INTO accounts (id,name,balance) VALUES (?,?,?)",
		accountRow(4, "dave", "75.00"))
	require.NoError(t, err)
	require.NoError(t, session.Rollback(ctx))

	rows, err := srv.TableRows("accounts")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	require.NoError(t, session.Commit(ctx))
	for _, entry := range srv.Statements() {
		require.NotContains(t, entry, "work")
	}
}

func TestFaultInjection(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	boom := errors.New("wire dropped")
	srv.FailNext(boom)
	err := session.Begin(ctx)
	require.ErrorIs(t, err, boom)

	// The fault is one-shot.
	require.NoError(t, session.Begin(ctx))
}

func TestJournalRecordsProtocol(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()
	srv.ResetJournal()

	require.NoError(t, session.Begin(ctx))
	require.NoError(t, session.Commit(ctx))

	journal := srv.Statements()
	require.Equal(t, []string{"begin work", "commit work"}, journal)
}

func TestParseRejectsUnsupported(t *testing.T) {
	srv := newAccountServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	require.Error(t, session.Prepare(ctx, "s1", "TRUNCATE accounts"))
	require.Error(t, session.Prepare(ctx, "s2", "SELECT name FROM accounts WHERE id = 1"))
}
