package executor

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/credativ/informix-fdw-sub001/internal/cursor"
	"github.com/credativ/informix-fdw-sub001/internal/txn"
	"github.com/credativ/informix-fdw-sub001/pkg/fdw"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype/marshal"
)

// Table executes scans and modifications for one binding over one
// coordinated connection.
type Table struct {
	coord   *txn.Coordinator
	binding fdw.TableBinding
	caps    marshal.Caps
	loc     ifxtype.Locale
}

func newTable(coord *txn.Coordinator, binding fdw.TableBinding) *Table {
	return &Table{
		coord:   coord,
		binding: binding,
		caps:    marshal.Caps{LargeObjects: binding.EnableBlobs},
		loc:     binding.Locale.WithDefaults(),
	}
}

// Binding returns the table's binding.
func (t *Table) Binding() fdw.TableBinding { return t.binding }

// Coordinator returns the transaction coordinator the table runs under.
func (t *Table) Coordinator() *txn.Coordinator { return t.coord }

// AtomicModifications reports whether multi-row modifications on this
// table are statement atomic. The bridge never claims atomicity the
// remote engine does not provide.
func (t *Table) AtomicModifications() bool {
	return t.coord.Connection().Session().AtomicStatements()
}

// Scan opens a cursor over the binding.
func (t *Table) Scan(ctx context.Context, pred fdw.Predicate, spec cursor.ScanSpec) (*cursor.Cursor, error) {
	return t.coord.Scan(ctx, t.binding, pred, spec)
}

// CloseScan closes a cursor opened through Scan.
func (t *Table) CloseScan(ctx context.Context, cur *cursor.Cursor) error {
	return t.coord.CloseScan(ctx, cur)
}

// Insert adds one row. The bool result reports deferral inside a
// subtransaction; a deferred insert reaches the remote engine when the
// enclosing subtransaction commit becomes certain.
func (t *Table) Insert(ctx context.Context, values []ifxtype.Value) (int64, bool, error) {
	if t.binding.QueryBased() {
		return 0, false, fmt.Errorf("foreign table %q: cannot insert through a query-based binding", t.binding.LocalTable)
	}
	if len(values) != len(t.binding.Columns) {
		return 0, false, fdw.NewColumnCountMismatchErr(t.binding.LocalTable, len(t.binding.Columns), len(values))
	}
	names := make([]string, 0, len(t.binding.Columns))
	row := make([]interface{}, 0, len(values))
	for i, col := range t.binding.Columns {
		d, err := marshal.Encode(col, values[i], t.loc, t.caps)
		if err != nil {
			return 0, false, err
		}
		names = append(names, col.Name)
		row = append(row, d)
	}
	query, args, err := toDatumSQL(sq.Insert(t.binding.RemoteTable).Columns(names...).Values(row...))
	if err != nil {
		return 0, false, err
	}
	affected, deferred, err := t.coord.ExecModify(ctx, query, args)
	if deferred {
		// An insert always affects exactly one row once flushed.
		return 1, true, err
	}
	return affected, false, err
}

// Update modifies one previously scanned row. The plan shape decides the
// mechanism: direct targets the row by identity, cursor positions the
// statement through the producing cursor. A cursor plan that cannot keep
// the cursor positioned on the changing tuple is rejected before any
// remote statement is sent.
func (t *Table) Update(ctx context.Context, plan fdw.ModifyPlan, cur *cursor.Cursor, row fdw.Row, values []ifxtype.Value) (int64, bool, error) {
	switch plan.Strategy {
	case fdw.StrategyCursor:
		if !fdw.CursorStrategyUsable(plan) {
			return 0, false, fdw.NewUnsupportedPlanErr(plan)
		}
		if t.coord.Depth() > 1 {
			return t.deferPositioned(ctx, row, func(rowid int64) (string, []ifxtype.Datum, error) {
				return t.buildUpdateByID(rowid, values)
			})
		}
		affected, err := cur.UpdateCurrent(ctx, values)
		return affected, false, err

	default:
		query, args, err := t.buildUpdateByID(row.RowID, values)
		if err != nil {
			return 0, false, err
		}
		return t.execDirect(ctx, row, query, args)
	}
}

// Delete removes one previously scanned row, routed like Update.
func (t *Table) Delete(ctx context.Context, plan fdw.ModifyPlan, cur *cursor.Cursor, row fdw.Row) (int64, bool, error) {
	switch plan.Strategy {
	case fdw.StrategyCursor:
		if !fdw.CursorStrategyUsable(plan) {
			return 0, false, fdw.NewUnsupportedPlanErr(plan)
		}
		if t.coord.Depth() > 1 {
			return t.deferPositioned(ctx, row, t.buildDeleteByID)
		}
		affected, err := cur.DeleteCurrent(ctx)
		return affected, false, err

	default:
		query, args, err := t.buildDeleteByID(row.RowID)
		if err != nil {
			return 0, false, err
		}
		return t.execDirect(ctx, row, query, args)
	}
}

// Assignment pairs a column with its new value for a predicate-targeted
// modification.
type Assignment struct {
	Column string
	Value  ifxtype.Value
}

// UpdateWhere applies one direct statement to every row the predicate
// matches, without needing row identity. Every clause must be remotely
// evaluable. The affected count is the remote engine's; when the
// statement is deferred inside a subtransaction the count is unknown
// until flush and reported as zero. When AtomicModifications is false, a
// mid-statement failure may leave an applied prefix behind, and the
// prefix count accompanies the error.
func (t *Table) UpdateWhere(ctx context.Context, pred fdw.Predicate, set []Assignment) (int64, bool, error) {
	if len(set) == 0 {
		return 0, false, fmt.Errorf("foreign table %q: update without assignments", t.binding.LocalTable)
	}
	builder := sq.Update(t.binding.RemoteTable)
	for _, a := range set {
		col, ok := t.binding.Column(a.Column)
		if !ok {
			return 0, false, fmt.Errorf("foreign table %q has no column %q", t.binding.LocalTable, a.Column)
		}
		d, err := marshal.Encode(col, a.Value, t.loc, t.caps)
		if err != nil {
			return 0, false, err
		}
		builder = builder.Set(col.Name, d)
	}
	return t.execWhere(ctx, pred, func(where []sq.Sqlizer) sq.Sqlizer {
		for _, w := range where {
			builder = builder.Where(w)
		}
		return builder
	})
}

// DeleteWhere removes every row the predicate matches with one direct
// statement, with the same count and deferral semantics as UpdateWhere.
func (t *Table) DeleteWhere(ctx context.Context, pred fdw.Predicate) (int64, bool, error) {
	builder := sq.Delete(t.binding.RemoteTable)
	return t.execWhere(ctx, pred, func(where []sq.Sqlizer) sq.Sqlizer {
		for _, w := range where {
			builder = builder.Where(w)
		}
		return builder
	})
}

func (t *Table) execWhere(ctx context.Context, pred fdw.Predicate, apply func([]sq.Sqlizer) sq.Sqlizer) (int64, bool, error) {
	if t.binding.QueryBased() {
		return 0, false, fmt.Errorf("foreign table %q: cannot modify through a query-based binding", t.binding.LocalTable)
	}
	// An unqualified statement would touch the whole remote table; the
	// planner always supplies at least one clause.
	if len(pred) == 0 {
		return 0, false, fmt.Errorf("foreign table %q: refusing an unqualified direct modification", t.binding.LocalTable)
	}
	where, err := cursor.RemoteWhere(t.binding, pred)
	if err != nil {
		return 0, false, err
	}
	query, args, err := toDatumSQL(apply(where))
	if err != nil {
		return 0, false, err
	}
	affected, deferred, err := t.coord.ExecModify(ctx, query, args)
	if deferred {
		return 0, true, err
	}
	return affected, false, err
}

func (t *Table) execDirect(ctx context.Context, row fdw.Row, query string, args []ifxtype.Datum) (int64, bool, error) {
	if !t.binding.RowIDUsable() || !row.HasRowID {
		return 0, false, fmt.Errorf("foreign table %q: no row identity available for a direct modification", t.binding.LocalTable)
	}
	affected, deferred, err := t.coord.ExecModify(ctx, query, args)
	if deferred {
		return 1, true, err
	}
	return affected, false, err
}

// deferPositioned rewrites a positioned modification as an identity
// targeted one so it can be buffered: the cursor's position is only valid
// now, not at flush time.
func (t *Table) deferPositioned(ctx context.Context, row fdw.Row, build func(int64) (string, []ifxtype.Datum, error)) (int64, bool, error) {
	if !t.binding.RowIDUsable() || !row.HasRowID {
		return 0, false, fmt.Errorf("foreign table %q: positioned modification cannot be deferred without a row identity", t.binding.LocalTable)
	}
	query, args, err := build(row.RowID)
	if err != nil {
		return 0, false, err
	}
	_, _, err = t.coord.ExecModify(ctx, query, args)
	return 1, true, err
}

func (t *Table) buildUpdateByID(rowid int64, values []ifxtype.Value) (string, []ifxtype.Datum, error) {
	if len(values) != len(t.binding.Columns) {
		return "", nil, fdw.NewColumnCountMismatchErr(t.binding.LocalTable, len(t.binding.Columns), len(values))
	}
	builder := sq.Update(t.binding.RemoteTable)
	for i, col := range t.binding.Columns {
		d, err := marshal.Encode(col, values[i], t.loc, t.caps)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Set(col.Name, d)
	}
	return toDatumSQL(builder.Where(sq.Eq{"rowid": rowidDatum(rowid)}))
}

func (t *Table) buildDeleteByID(rowid int64) (string, []ifxtype.Datum, error) {
	return toDatumSQL(sq.Delete(t.binding.RemoteTable).Where(sq.Eq{"rowid": rowidDatum(rowid)}))
}

func rowidDatum(rowid int64) ifxtype.Datum {
	return ifxtype.TextDatum(ifxtype.Integer, strconv.FormatInt(rowid, 10))
}

func toDatumSQL(builder sq.Sqlizer) (string, []ifxtype.Datum, error) {
	query, rawArgs, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	args := make([]ifxtype.Datum, len(rawArgs))
	for i, a := range rawArgs {
		d, ok := a.(ifxtype.Datum)
		if !ok {
			return "", nil, fmt.Errorf("statement argument %d was not encoded", i)
		}
		args[i] = d
	}
	return query, args, nil
}
