// Package memremote implements the remote session protocol against an
// in-process go-memdb database. It behaves like the real remote engine in
// the ways the bridge core depends on: flat transactions only, cursors
// that materialize at open, hold cursors surviving commit, and a stable
// rowid per stored row. The test suite and local development run against
// it.
package memremote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-memdb"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

const indexID = "id"

// storedRow is the memdb record for one remote table row. ID doubles as
// the rowid token handed out to clients.
type storedRow struct {
	ID    uint64
	Cells []ifxtype.Datum
}

type tableDef struct {
	name string
	cols []ifxtype.ColumnDescriptor
}

func (td *tableDef) columnIndex(name string) int {
	for i, col := range td.cols {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// Server hosts the remote tables and hands out sessions through Driver.
type Server struct {
	mu        sync.Mutex
	db        *memdb.MemDB
	tables    map[string]*tableDef
	nextRowID uint64

	journal     []string
	failNext    error
	failConnect error
	atomicStmts bool
}

// NewServer returns an empty server. Tables must be created before the
// first session connects.
func NewServer() *Server {
	return &Server{
		tables:      map[string]*tableDef{},
		nextRowID:   1,
		atomicStmts: true,
	}
}

// CreateTable registers a remote table. Must precede the first Connect or
// LoadRows call.
func (s *Server) CreateTable(name string, cols []ifxtype.ColumnDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return fmt.Errorf("table %q: schema is frozen once the server is in use", name)
	}
	name = strings.ToLower(name)
	if _, exists := s.tables[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	s.tables[name] = &tableDef{name: name, cols: cols}
	return nil
}

// LoadRows seeds a table with initial rows outside any transaction.
func (s *Server) LoadRows(table string, rows [][]ifxtype.Datum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureDBLocked(); err != nil {
		return err
	}
	table = strings.ToLower(table)
	def, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("table %q does not exist", table)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	for _, cells := range rows {
		if len(cells) != len(def.cols) {
			return fmt.Errorf("table %q: row has %d cells, expected %d", table, len(cells), len(def.cols))
		}
		row := &storedRow{ID: s.nextRowID, Cells: append([]ifxtype.Datum(nil), cells...)}
		s.nextRowID++
		if err := txn.Insert(table, row); err != nil {
			return err
		}
	}
	txn.Commit()
	return nil
}

func (s *Server) ensureDBLocked() error {
	if s.db != nil {
		return nil
	}
	schema := &memdb.DBSchema{Tables: map[string]*memdb.TableSchema{}}
	for name := range s.tables {
		schema.Tables[name] = &memdb.TableSchema{
			Name: name,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.UintFieldIndex{Field: "ID"},
				},
			},
		}
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Driver returns a remote.Driver establishing sessions on this server.
func (s *Server) Driver() remote.Driver { return driver{s} }

type driver struct{ srv *Server }

func (d driver) Connect(ctx context.Context, params remote.ConnParams) (remote.Session, error) {
	s := d.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failConnect != nil {
		return nil, remote.NewConnectivityErr(params.ServerName, s.failConnect)
	}
	if params.ServerName == "" || params.Username == "" {
		return nil, remote.NewConnectivityErr(params.ServerName, fmt.Errorf("server and user identifiers are required"))
	}
	if err := s.ensureDBLocked(); err != nil {
		return nil, remote.NewConnectivityErr(params.ServerName, err)
	}
	s.logLocked("connect " + params.ServerName + "/" + params.Username)
	return &session{
		srv:     s,
		params:  params,
		stmts:   map[string]*preparedStmt{},
		cursors: map[string]*cursorState{},
	}, nil
}

// FailConnections makes every subsequent Connect fail with cause, or
// succeed again when cause is nil.
func (s *Server) FailConnections(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConnect = cause
}

// FailNext makes the next protocol call on any session return cause.
func (s *Server) FailNext(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = cause
}

// SetAtomicStatements toggles the engine's statement-atomicity guarantee
// as reported to clients.
func (s *Server) SetAtomicStatements(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atomicStmts = v
}

// Statements returns the journal of every protocol operation the server
// has seen, in issue order.
func (s *Server) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.journal...)
}

// ResetJournal clears the statement journal.
func (s *Server) ResetJournal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = s.journal[:0]
}

func (s *Server) logLocked(entry string) {
	s.journal = append(s.journal, entry)
}

func (s *Server) log(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLocked(entry)
}

// takeFault pops a pending injected fault, if any.
func (s *Server) takeFault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.failNext
	s.failNext = nil
	return err
}

// TableRows returns the committed rows of a table ordered by rowid, for
// test assertions.
func (s *Server) TableRows(table string) ([][]ifxtype.Datum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureDBLocked(); err != nil {
		return nil, err
	}
	table = strings.ToLower(table)
	if _, ok := s.tables[table]; !ok {
		return nil, fmt.Errorf("table %q does not exist", table)
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(table, indexID)
	if err != nil {
		return nil, err
	}
	var out [][]ifxtype.Datum
	for obj := it.Next(); obj != nil; obj = it.Next() {
		row := obj.(*storedRow)
		out = append(out, append([]ifxtype.Datum(nil), row.Cells...))
	}
	return out, nil
}
