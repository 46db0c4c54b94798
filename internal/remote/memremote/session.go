package memremote

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-memdb"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

type preparedStmt struct {
	query  string
	parsed *parsedStmt
}

type materializedRow struct {
	rowid uint64
	cells []ifxtype.Datum
}

type cursorState struct {
	name     string
	stmtName string
	scroll   bool
	hold     bool
	table    string
	shape    []ifxtype.ColumnDescriptor
	rows     []materializedRow

	// pos is 1-based; 0 is before the first row, len(rows)+1 past the
	// last.
	pos  int
	open bool
}

type session struct {
	srv     *Server
	params  remote.ConnParams
	txn     *memdb.Txn
	stmts   map[string]*preparedStmt
	cursors map[string]*cursorState
	closed  bool
}

var _ remote.Session = (*session)(nil)

func (s *session) guard() error {
	if s.closed {
		return remote.NewConnectivityErr(s.params.ServerName, fmt.Errorf("session is closed"))
	}
	if err := s.srv.takeFault(); err != nil {
		return err
	}
	return nil
}

func (s *session) Begin(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !s.params.TxEnabled {
		// A database created without logging accepts transaction verbs
		// and ignores them; every statement commits on its own.
		return nil
	}
	s.srv.log("begin work")
	if s.txn != nil {
		return remote.NewProtocolErr("25001", "transaction already in progress")
	}
	s.txn = s.srv.db.Txn(true)
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !s.params.TxEnabled {
		return nil
	}
	s.srv.log("commit work")
	if s.txn == nil {
		return remote.NewProtocolErr("25000", "no transaction in progress")
	}
	s.txn.Commit()
	s.txn = nil
	for name, cur := range s.cursors {
		if !cur.hold {
			delete(s.cursors, name)
		}
	}
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !s.params.TxEnabled {
		return nil
	}
	s.srv.log("rollback work")
	if s.txn == nil {
		return remote.NewProtocolErr("25000", "no transaction in progress")
	}
	s.txn.Abort()
	s.txn = nil
	// No cursor survives a rollback, held or not.
	s.cursors = map[string]*cursorState{}
	return nil
}

func (s *session) Prepare(ctx context.Context, stmtName, query string) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.srv.log("prepare " + stmtName + ": " + query)
	parsed, err := parseStatement(query)
	if err != nil {
		return err
	}
	s.stmts[stmtName] = &preparedStmt{query: query, parsed: parsed}
	return nil
}

func (s *session) Describe(ctx context.Context, stmtName string) ([]ifxtype.ColumnDescriptor, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	s.srv.log("describe " + stmtName)
	ps, ok := s.stmts[stmtName]
	if !ok {
		return nil, remote.NewProtocolErr("26000", "unknown statement %q", stmtName)
	}
	if ps.parsed.kind != stmtSelect {
		return nil, nil
	}
	return s.resolveShape(ps.parsed)
}

func (s *session) resolveShape(stmt *parsedStmt) ([]ifxtype.ColumnDescriptor, error) {
	var source []ifxtype.ColumnDescriptor
	if stmt.sub != nil {
		inner, err := s.resolveShape(stmt.sub)
		if err != nil {
			return nil, err
		}
		source = inner
	} else {
		def, ok := s.srv.tables[stmt.table]
		if !ok {
			return nil, remote.NewProtocolErr("42000", "table %q does not exist", stmt.table)
		}
		source = def.cols
	}
	if len(stmt.cols) == 1 && stmt.cols[0] == "*" {
		return append([]ifxtype.ColumnDescriptor(nil), source...), nil
	}
	var out []ifxtype.ColumnDescriptor
	for _, name := range stmt.cols {
		if name == "rowid" {
			if stmt.sub != nil {
				return nil, remote.NewProtocolErr("42000", "rowid is not available through a derived table")
			}
			out = append(out, ifxtype.ColumnDescriptor{Name: "rowid", Type: ifxtype.Integer})
			continue
		}
		found := false
		for _, col := range source {
			if strings.EqualFold(col.Name, name) {
				out = append(out, col)
				found = true
				break
			}
		}
		if !found {
			return nil, remote.NewProtocolErr("42000", "column %q does not exist", name)
		}
	}
	return out, nil
}

func (s *session) Declare(ctx context.Context, cursorName, stmtName string, scroll, hold bool) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.srv.log(fmt.Sprintf("declare %s cursor (scroll=%t hold=%t) for %s", cursorName, scroll, hold, stmtName))
	ps, ok := s.stmts[stmtName]
	if !ok {
		return remote.NewProtocolErr("26000", "unknown statement %q", stmtName)
	}
	if ps.parsed.kind != stmtSelect {
		return remote.NewProtocolErr("42000", "cursors require a select statement")
	}
	s.cursors[cursorName] = &cursorState{
		name:     cursorName,
		stmtName: stmtName,
		scroll:   scroll,
		hold:     hold,
		table:    ps.parsed.table,
	}
	return nil
}

func (s *session) Open(ctx context.Context, cursorName string, args []ifxtype.Datum) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.srv.log("open " + cursorName)
	cur, ok := s.cursors[cursorName]
	if !ok {
		return remote.NewProtocolErr("34000", "unknown cursor %q", cursorName)
	}
	ps := s.stmts[cur.stmtName]
	if ps == nil {
		return remote.NewProtocolErr("26000", "statement for cursor %q was freed", cursorName)
	}
	if len(args) != ps.parsed.nargs {
		return remote.NewProtocolErr("07001", "statement expects %d arguments, got %d", ps.parsed.nargs, len(args))
	}
	shape, err := s.resolveShape(ps.parsed)
	if err != nil {
		return err
	}
	txn, release := s.readTxn()
	defer release()
	rows, err := s.materialize(txn, ps.parsed, args)
	if err != nil {
		return err
	}
	cur.shape = shape
	cur.rows = rows
	cur.pos = 0
	cur.open = true
	return nil
}

func (s *session) Fetch(ctx context.Context, cursorName string, dir remote.FetchDirection, pos int) ([]ifxtype.Datum, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	s.srv.log(fmt.Sprintf("fetch %s %s", dir, cursorName))
	cur, ok := s.cursors[cursorName]
	if !ok || !cur.open {
		return nil, remote.NewProtocolErr("34000", "cursor %q is not open", cursorName)
	}
	if !cur.scroll && dir != remote.FetchNext && dir != remote.FetchCurrent {
		return nil, remote.NewProtocolErr("42000", "cursor %q is not scrollable", cursorName)
	}
	switch dir {
	case remote.FetchNext:
		cur.pos++
	case remote.FetchPrior:
		cur.pos--
	case remote.FetchFirst:
		cur.pos = 1
	case remote.FetchLast:
		cur.pos = len(cur.rows)
	case remote.FetchAbsolute:
		cur.pos = pos
	case remote.FetchRelative:
		cur.pos += pos
	case remote.FetchCurrent:
	}
	if cur.pos < 1 || cur.pos > len(cur.rows) {
		if cur.pos < 0 {
			cur.pos = 0
		}
		if cur.pos > len(cur.rows) {
			cur.pos = len(cur.rows) + 1
		}
		return nil, nil
	}
	row := cur.rows[cur.pos-1]
	return append([]ifxtype.Datum(nil), row.cells...), nil
}

func (s *session) CloseCursor(ctx context.Context, cursorName string) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.srv.log("close " + cursorName)
	cur, ok := s.cursors[cursorName]
	if !ok {
		return remote.NewProtocolErr("34000", "unknown cursor %q", cursorName)
	}
	cur.open = false
	delete(s.cursors, cursorName)
	return nil
}

func (s *session) Free(ctx context.Context, name string) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.srv.log("free " + name)
	delete(s.stmts, name)
	return nil
}

func (s *session) Exec(ctx context.Context, query string, args []ifxtype.Datum) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	s.srv.log("execute: " + query)
	parsed, err := parseStatement(query)
	if err != nil {
		return 0, err
	}
	if parsed.kind == stmtSelect {
		return 0, remote.NewProtocolErr("42000", "select requires a cursor")
	}
	if len(args) != parsed.nargs {
		return 0, remote.NewProtocolErr("07001", "statement expects %d arguments, got %d", parsed.nargs, len(args))
	}
	def, ok := s.srv.tables[parsed.table]
	if !ok {
		return 0, remote.NewProtocolErr("42000", "table %q does not exist", parsed.table)
	}
	txn, release := s.writeTxn()
	switch parsed.kind {
	case stmtInsert:
		err = s.applyInsert(txn, def, parsed, args)
		if err != nil {
			release(false)
			return 0, err
		}
		release(true)
		return 1, nil
	case stmtUpdate, stmtDelete:
		n, err := s.applyTargeted(txn, def, parsed, args)
		if err != nil {
			release(false)
			return 0, err
		}
		release(true)
		return n, nil
	default:
		release(false)
		return 0, remote.NewProtocolErr("42000", "unsupported statement")
	}
}

func (s *session) AtomicStatements() bool {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	return s.srv.atomicStmts
}

func (s *session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.srv.log("disconnect " + s.params.ServerName + "/" + s.params.Username)
	if s.txn != nil {
		s.txn.Abort()
		s.txn = nil
	}
	s.cursors = map[string]*cursorState{}
	s.stmts = map[string]*preparedStmt{}
	s.closed = true
	return nil
}

// readTxn returns the session's open transaction or a throwaway read
// snapshot.
func (s *session) readTxn() (*memdb.Txn, func()) {
	if s.txn != nil {
		return s.txn, func() {}
	}
	txn := s.srv.db.Txn(false)
	return txn, txn.Abort
}

// writeTxn returns the session's open transaction or a single-statement
// autocommit transaction.
func (s *session) writeTxn() (*memdb.Txn, func(commit bool)) {
	if s.txn != nil {
		return s.txn, func(bool) {}
	}
	txn := s.srv.db.Txn(true)
	return txn, func(commit bool) {
		if commit {
			txn.Commit()
		} else {
			txn.Abort()
		}
	}
}
