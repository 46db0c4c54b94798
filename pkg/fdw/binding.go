// Package fdw defines the public surface of the foreign-table bridge
// core: table bindings, predicate clauses, modification plans, rows and
// the error types the excluded planner and catalog layers consume.
package fdw

import (
	"fmt"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// TableBinding is the resolved association between a local table and its
// remote source, as handed over by the catalog layer. It is immutable for
// the lifetime of one planning/execution cycle.
type TableBinding struct {
	LocalTable string

	// Exactly one of RemoteTable and Query is set. Query-based bindings
	// scan an arbitrary remote statement and carry no usable row identity.
	RemoteTable string
	Query       string

	Columns []ifxtype.ColumnDescriptor

	// EnableBlobs permits large-object columns on this table.
	EnableBlobs bool

	// DisableRowID turns off identity-based modifications, forcing the
	// cursor strategy for UPDATE and DELETE.
	DisableRowID bool

	// DisablePushdown keeps every predicate local regardless of type
	// eligibility.
	DisablePushdown bool

	Locale ifxtype.Locale
}

// Validate checks the binding for internal consistency.
func (tb TableBinding) Validate() error {
	if (tb.RemoteTable == "") == (tb.Query == "") {
		return fmt.Errorf("binding %q: exactly one of remote table and query must be set", tb.LocalTable)
	}
	if len(tb.Columns) == 0 {
		return fmt.Errorf("binding %q: no columns declared", tb.LocalTable)
	}
	seen := make(map[string]struct{}, len(tb.Columns))
	for _, col := range tb.Columns {
		if err := col.Validate(); err != nil {
			return fmt.Errorf("binding %q: %w", tb.LocalTable, err)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("binding %q: duplicate column %q", tb.LocalTable, col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}

// QueryBased reports whether the binding scans a remote query text rather
// than a base table.
func (tb TableBinding) QueryBased() bool { return tb.Query != "" }

// RowIDUsable reports whether identity-based (direct strategy) UPDATE and
// DELETE may target rows of this binding. A derived query exposes no
// stable row position token.
func (tb TableBinding) RowIDUsable() bool {
	return !tb.DisableRowID && !tb.QueryBased()
}

// Column returns the descriptor for a named column.
func (tb TableBinding) Column(name string) (ifxtype.ColumnDescriptor, bool) {
	for _, col := range tb.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ifxtype.ColumnDescriptor{}, false
}
