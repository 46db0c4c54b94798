package memremote

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-memdb"
	"github.com/shopspring/decimal"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// materialize evaluates a select statement into its full result set, the
// way the real engine materializes a scroll cursor into a temp table.
func (s *session) materialize(txn *memdb.Txn, stmt *parsedStmt, args []ifxtype.Datum) ([]materializedRow, error) {
	var (
		source     []materializedRow
		sourceCols []ifxtype.ColumnDescriptor
	)
	if stmt.sub != nil {
		inner, err := s.materialize(txn, stmt.sub, args)
		if err != nil {
			return nil, err
		}
		innerShape, err := s.resolveShape(stmt.sub)
		if err != nil {
			return nil, err
		}
		source, sourceCols = inner, innerShape
	} else {
		def, ok := s.srv.tables[stmt.table]
		if !ok {
			return nil, remote.NewProtocolErr("42000", "table %q does not exist", stmt.table)
		}
		it, err := txn.Get(stmt.table, indexID)
		if err != nil {
			return nil, remote.NewProtocolErr("58000", "scan of %q failed: %v", stmt.table, err)
		}
		for obj := it.Next(); obj != nil; obj = it.Next() {
			row := obj.(*storedRow)
			source = append(source, materializedRow{rowid: row.ID, cells: row.Cells})
		}
		sourceCols = def.cols
	}

	var out []materializedRow
	for _, row := range source {
		if stmt.where != nil {
			match, err := evalBool(stmt.where, sourceCols, row, args)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		projected, err := project(stmt.cols, sourceCols, row)
		if err != nil {
			return nil, err
		}
		out = append(out, materializedRow{rowid: row.rowid, cells: projected})
	}
	return out, nil
}

func project(cols []string, sourceCols []ifxtype.ColumnDescriptor, row materializedRow) ([]ifxtype.Datum, error) {
	if len(cols) == 1 && cols[0] == "*" {
		return append([]ifxtype.Datum(nil), row.cells...), nil
	}
	out := make([]ifxtype.Datum, 0, len(cols))
	for _, name := range cols {
		if name == "rowid" {
			out = append(out, ifxtype.TextDatum(ifxtype.Integer, strconv.FormatUint(row.rowid, 10)))
			continue
		}
		idx := columnIndexOf(sourceCols, name)
		if idx < 0 {
			return nil, remote.NewProtocolErr("42000", "column %q does not exist", name)
		}
		out = append(out, row.cells[idx])
	}
	return out, nil
}

func columnIndexOf(cols []ifxtype.ColumnDescriptor, name string) int {
	for i, col := range cols {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

func (s *session) applyInsert(txn *memdb.Txn, def *tableDef, stmt *parsedStmt, args []ifxtype.Datum) error {
	cells := make([]ifxtype.Datum, len(def.cols))
	for i, col := range def.cols {
		cells[i] = ifxtype.NullDatum(col.Type)
	}
	for i, name := range stmt.cols {
		idx := def.columnIndex(name)
		if idx < 0 {
			return remote.NewProtocolErr("42000", "column %q does not exist", name)
		}
		cells[idx] = args[i]
	}
	s.srv.mu.Lock()
	id := s.srv.nextRowID
	s.srv.nextRowID++
	s.srv.mu.Unlock()
	if err := txn.Insert(def.name, &storedRow{ID: id, Cells: cells}); err != nil {
		return remote.NewProtocolErr("58000", "insert into %q failed: %v", def.name, err)
	}
	return nil
}

// applyTargeted runs an UPDATE or DELETE against its target rows: the
// cursor's current row for CURRENT OF, otherwise every row matching the
// WHERE expression.
func (s *session) applyTargeted(txn *memdb.Txn, def *tableDef, stmt *parsedStmt, args []ifxtype.Datum) (int64, error) {
	var targets []*storedRow
	if stmt.currentOf != "" {
		cur, ok := s.cursors[stmt.currentOf]
		if !ok || !cur.open {
			return 0, remote.NewProtocolErr("34000", "cursor %q is not open", stmt.currentOf)
		}
		if cur.pos < 1 || cur.pos > len(cur.rows) {
			return 0, remote.NewProtocolErr("24000", "cursor %q is not positioned on a row", stmt.currentOf)
		}
		if cur.table != stmt.table {
			return 0, remote.NewProtocolErr("42000", "cursor %q reads a different table", stmt.currentOf)
		}
		obj, err := txn.First(stmt.table, indexID, cur.rows[cur.pos-1].rowid)
		if err != nil || obj == nil {
			return 0, remote.NewProtocolErr("24000", "current row of cursor %q is gone", stmt.currentOf)
		}
		targets = append(targets, obj.(*storedRow))
	} else {
		it, err := txn.Get(stmt.table, indexID)
		if err != nil {
			return 0, remote.NewProtocolErr("58000", "scan of %q failed: %v", stmt.table, err)
		}
		for obj := it.Next(); obj != nil; obj = it.Next() {
			row := obj.(*storedRow)
			match, err := evalBool(stmt.where, def.cols, materializedRow{rowid: row.ID, cells: row.Cells}, args)
			if err != nil {
				return 0, err
			}
			if match {
				targets = append(targets, row)
			}
		}
	}

	setArgs := args[:len(stmt.setCols)]
	var affected int64
	for _, target := range targets {
		if stmt.kind == stmtDelete {
			if err := txn.Delete(def.name, target); err != nil {
				return affected, remote.NewProtocolErr("58000", "delete from %q failed: %v", def.name, err)
			}
			affected++
			continue
		}
		cells := append([]ifxtype.Datum(nil), target.Cells...)
		for i, name := range stmt.setCols {
			idx := def.columnIndex(name)
			if idx < 0 {
				return affected, remote.NewProtocolErr("42000", "column %q does not exist", name)
			}
			cells[idx] = setArgs[i]
		}
		if err := txn.Insert(def.name, &storedRow{ID: target.ID, Cells: cells}); err != nil {
			return affected, remote.NewProtocolErr("58000", "update of %q failed: %v", def.name, err)
		}
		affected++
	}
	return affected, nil
}

func evalBool(expr boolExpr, cols []ifxtype.ColumnDescriptor, row materializedRow, args []ifxtype.Datum) (bool, error) {
	switch e := expr.(type) {
	case andExpr:
		for _, kid := range e.kids {
			ok, err := evalBool(kid, cols, row, args)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case orExpr:
		for _, kid := range e.kids {
			ok, err := evalBool(kid, cols, row, args)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case cmpExpr:
		var cell ifxtype.Datum
		if e.col == "rowid" {
			cell = ifxtype.TextDatum(ifxtype.Integer, strconv.FormatUint(row.rowid, 10))
		} else {
			idx := columnIndexOf(cols, e.col)
			if idx < 0 {
				return false, remote.NewProtocolErr("42000", "column %q does not exist", e.col)
			}
			cell = row.cells[idx]
		}
		if e.arg >= len(args) {
			return false, remote.NewProtocolErr("07001", "missing argument %d", e.arg)
		}
		return compareDatums(cell, args[e.arg], e.op)
	default:
		return false, remote.NewProtocolErr("42000", "unsupported expression")
	}
}

// compareDatums applies SQL comparison semantics: NULL matches nothing,
// numeric tags compare numerically, everything else by its character
// representation.
func compareDatums(a, b ifxtype.Datum, op string) (bool, error) {
	if a.Null || b.Null {
		return false, nil
	}
	var cmp int
	if numericTag(a.Tag) && numericTag(b.Tag) {
		da, errA := decimal.NewFromString(strings.TrimSpace(a.Text))
		db, errB := decimal.NewFromString(strings.TrimSpace(b.Text))
		if errA != nil || errB != nil {
			return false, remote.NewProtocolErr("22P02", "malformed numeric literal")
		}
		cmp = da.Cmp(db)
	} else {
		cmp = strings.Compare(a.Text, b.Text)
	}
	switch op {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, remote.NewProtocolErr("42000", "unsupported operator %q", op)
	}
}

func numericTag(t ifxtype.Type) bool {
	return t.IsInteger() || t == ifxtype.Decimal || t == ifxtype.Money ||
		t == ifxtype.Float || t == ifxtype.SmallFloat
}
