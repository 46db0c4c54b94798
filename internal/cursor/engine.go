package cursor

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/credativ/informix-fdw-sub001/internal/conncache"
	log "github.com/credativ/informix-fdw-sub001/internal/logging"
	"github.com/credativ/informix-fdw-sub001/internal/remote"
	"github.com/credativ/informix-fdw-sub001/pkg/fdw"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype/marshal"
)

const errUnableToOpenScan = "unable to open foreign scan: %w"

// ScanSpec configures one cursor-backed scan.
type ScanSpec struct {
	// Scroll requests a scrollable cursor; the default is forward-only.
	Scroll bool

	// Hold keeps the remote cursor alive across a local commit. A held
	// cursor never survives a rollback.
	Hold bool

	// Depth is the local subtransaction depth the cursor is opened at,
	// used by the coordinator to close it on partial rollback.
	Depth uint
}

// Cursor is one open remote cursor plus the decode state for its rows.
type Cursor struct {
	conn    *conncache.Connection
	binding fdw.TableBinding

	name     string
	stmtName string
	spec     ScanSpec
	caps     marshal.Caps
	loc      ifxtype.Locale

	withRowID bool
	residual  fdw.Predicate

	pos  int
	open bool
}

// Open prepares, describes, declares and opens a cursor for the binding
// with the given predicate. The remote result shape is validated against
// the binding before any row can be fetched.
func Open(ctx context.Context, conn *conncache.Connection, binding fdw.TableBinding, pred fdw.Predicate, spec ScanSpec) (*Cursor, error) {
	if err := binding.Validate(); err != nil {
		return nil, fmt.Errorf(errUnableToOpenScan, err)
	}

	cur := &Cursor{
		conn:      conn,
		binding:   binding,
		name:      "ifxcur_" + xid.New().String(),
		stmtName:  "ifxstmt_" + xid.New().String(),
		spec:      spec,
		caps:      marshal.Caps{LargeObjects: binding.EnableBlobs},
		loc:       binding.Locale.WithDefaults(),
		withRowID: binding.RowIDUsable(),
	}

	query, args, err := cur.buildSelect(pred)
	if err != nil {
		return nil, fmt.Errorf(errUnableToOpenScan, err)
	}

	session := conn.Session()
	if err := session.Prepare(ctx, cur.stmtName, query); err != nil {
		return nil, fmt.Errorf(errUnableToOpenScan, err)
	}
	shape, err := session.Describe(ctx, cur.stmtName)
	if err != nil {
		freeQuietly(ctx, session, cur.stmtName)
		return nil, fmt.Errorf(errUnableToOpenScan, err)
	}
	if err := cur.checkShape(shape); err != nil {
		freeQuietly(ctx, session, cur.stmtName)
		return nil, err
	}
	if err := session.Declare(ctx, cur.name, cur.stmtName, spec.Scroll, spec.Hold); err != nil {
		freeQuietly(ctx, session, cur.stmtName)
		return nil, fmt.Errorf(errUnableToOpenScan, err)
	}
	if err := session.Open(ctx, cur.name, args); err != nil {
		freeQuietly(ctx, session, cur.stmtName)
		return nil, fmt.Errorf(errUnableToOpenScan, err)
	}
	cur.open = true
	log.Ctx(ctx).Trace().
		Str("cursor", cur.name).
		Str("table", binding.LocalTable).
		Bool("scroll", spec.Scroll).
		Bool("hold", spec.Hold).
		Msg("opened foreign scan cursor")
	return cur, nil
}

func (cur *Cursor) buildSelect(pred fdw.Predicate) (string, []ifxtype.Datum, error) {
	pushed, residual := splitPushdown(cur.binding, pred)
	cur.residual = residual

	var builder sq.SelectBuilder
	if cur.binding.QueryBased() {
		// A derived table exposes no row identity and its shape is only
		// known remotely, so select everything and validate at describe.
		builder = sq.Select("*").From("(" + cur.binding.Query + ") t")
	} else {
		names := make([]string, 0, len(cur.binding.Columns)+1)
		for _, col := range cur.binding.Columns {
			names = append(names, col.Name)
		}
		if cur.withRowID {
			names = append(names, "rowid")
		}
		builder = sq.Select(names...).From(cur.binding.RemoteTable)
	}
	for _, sqlizer := range pushed {
		builder = builder.Where(sqlizer)
	}
	query, rawArgs, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	args, ok := datumArgs(rawArgs)
	if !ok {
		return "", nil, fmt.Errorf("predicate arguments were not encoded")
	}
	return query, args, nil
}

// checkShape enforces the open-time contract: the remote result must
// match the binding column for column, in count and convertibility.
func (cur *Cursor) checkShape(shape []ifxtype.ColumnDescriptor) error {
	expected := len(cur.binding.Columns)
	actual := len(shape)
	if cur.withRowID {
		actual--
	}
	if actual != expected {
		return fdw.NewColumnCountMismatchErr(cur.binding.LocalTable, expected, actual)
	}
	for i, declared := range cur.binding.Columns {
		if !CanConvert(shape[i].Type, declared.Type) {
			return fdw.NewColumnConvertMismatchErr(cur.binding.LocalTable, declared.Name, declared.Type, shape[i].Type)
		}
	}
	return nil
}

// Next advances the cursor and returns the next row passing the residual
// predicate, or ok == false at end of data.
func (cur *Cursor) Next(ctx context.Context) (fdw.Row, bool, error) {
	for {
		row, ok, err := cur.fetch(ctx, remote.FetchNext, 0)
		if err != nil || !ok {
			return fdw.Row{}, false, err
		}
		if cur.residual.Matches(cur.binding, row.Values) {
			return row, true, nil
		}
	}
}

// Seek repositions a scrollable cursor to the 1-based absolute position
// and returns the row there. Unlike Next, Seek does not apply the
// residual predicate: the position is an absolute offset into the remote
// result set, and skipping filtered rows would shift the numbering out
// from under the caller.
func (cur *Cursor) Seek(ctx context.Context, pos int) (fdw.Row, bool, error) {
	if !cur.spec.Scroll {
		return fdw.Row{}, false, remote.NewProtocolErr("42000", "cursor %q is not scrollable", cur.name)
	}
	return cur.fetch(ctx, remote.FetchAbsolute, pos)
}

func (cur *Cursor) fetch(ctx context.Context, dir remote.FetchDirection, pos int) (fdw.Row, bool, error) {
	if !cur.open {
		return fdw.Row{}, false, remote.NewProtocolErr("24000", "cursor %q is closed", cur.name)
	}
	data, err := cur.conn.Session().Fetch(ctx, cur.name, dir, pos)
	if err != nil {
		return fdw.Row{}, false, err
	}
	if data == nil {
		return fdw.Row{}, false, nil
	}
	switch dir {
	case remote.FetchNext:
		cur.pos++
	case remote.FetchAbsolute:
		cur.pos = pos
	}

	row := fdw.Row{}
	if cur.withRowID {
		if len(data) != len(cur.binding.Columns)+1 {
			return fdw.Row{}, false, remote.NewProtocolErr("58000", "row width changed mid-scan")
		}
		rowid, err := strconv.ParseInt(data[len(data)-1].Text, 10, 64)
		if err != nil {
			return fdw.Row{}, false, remote.NewProtocolErr("58000", "malformed rowid %q", data[len(data)-1].Text)
		}
		row.RowID = rowid
		row.HasRowID = true
		data = data[:len(data)-1]
	}
	values, err := marshal.DecodeRow(cur.binding.Columns, data, cur.loc, cur.caps)
	if err != nil {
		return fdw.Row{}, false, err
	}
	row.Values = values
	return row, true, nil
}

// UpdateCurrent replaces the row under the cursor with the given values,
// positioned through the cursor itself.
func (cur *Cursor) UpdateCurrent(ctx context.Context, values []ifxtype.Value) (int64, error) {
	if cur.binding.QueryBased() {
		return 0, remote.NewProtocolErr("42000", "cannot modify through a query-based binding cursor")
	}
	builder := sq.Update(cur.binding.RemoteTable)
	for i, col := range cur.binding.Columns {
		if i >= len(values) {
			break
		}
		d, err := marshal.Encode(col, values[i], cur.loc, cur.caps)
		if err != nil {
			return 0, err
		}
		builder = builder.Set(col.Name, d)
	}
	builder = builder.Where(sq.Expr("CURRENT OF " + cur.name))
	query, rawArgs, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	return cur.execPositioned(ctx, query, rawArgs)
}

// DeleteCurrent removes the row under the cursor.
func (cur *Cursor) DeleteCurrent(ctx context.Context) (int64, error) {
	if cur.binding.QueryBased() {
		return 0, remote.NewProtocolErr("42000", "cannot modify through a query-based binding cursor")
	}
	builder := sq.Delete(cur.binding.RemoteTable).Where(sq.Expr("CURRENT OF " + cur.name))
	query, rawArgs, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	return cur.execPositioned(ctx, query, rawArgs)
}

func (cur *Cursor) execPositioned(ctx context.Context, query string, rawArgs []interface{}) (int64, error) {
	args, ok := datumArgs(rawArgs)
	if !ok {
		return 0, fmt.Errorf("modification arguments were not encoded")
	}
	return cur.conn.Session().Exec(ctx, query, args)
}

// Close releases the remote cursor and its prepared statement.
func (cur *Cursor) Close(ctx context.Context) error {
	if !cur.open {
		return nil
	}
	cur.open = false
	session := cur.conn.Session()
	err := session.CloseCursor(ctx, cur.name)
	freeQuietly(ctx, session, cur.stmtName)
	return err
}

// Name returns the remote cursor name.
func (cur *Cursor) Name() string { return cur.name }

// Depth returns the subtransaction depth the cursor was opened at.
func (cur *Cursor) Depth() uint { return cur.spec.Depth }

// Held reports whether the cursor survives a local commit.
func (cur *Cursor) Held() bool { return cur.spec.Hold }

// IsOpen reports whether the cursor is usable.
func (cur *Cursor) IsOpen() bool { return cur.open }

// Position returns the current 1-based row position, 0 before the first
// fetch.
func (cur *Cursor) Position() int { return cur.pos }

func freeQuietly(ctx context.Context, session remote.Session, name string) {
	if err := session.Free(ctx, name); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("statement", name).Msg("error freeing remote statement")
	}
}
