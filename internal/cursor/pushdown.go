package cursor

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/credativ/informix-fdw-sub001/pkg/fdw"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype/marshal"
)

// splitPushdown partitions the planner's predicate into the part sent to
// the remote engine and the residual applied locally after decoding.
// Only types with an unambiguous remote literal form are pushed; a clause
// whose value fails to encode stays local, which is always correct.
func splitPushdown(binding fdw.TableBinding, pred fdw.Predicate) (pushed []sq.Sqlizer, residual fdw.Predicate) {
	caps := marshal.Caps{LargeObjects: binding.EnableBlobs}
	for _, clause := range pred {
		if binding.DisablePushdown {
			residual = append(residual, clause)
			continue
		}
		col, ok := binding.Column(clause.Column)
		if !ok {
			residual = append(residual, clause)
			continue
		}
		sqlizer, ok := clauseToSQL(col, clause, binding.Locale, caps)
		if !ok {
			residual = append(residual, clause)
			continue
		}
		pushed = append(pushed, sqlizer)
	}
	return pushed, residual
}

// RemoteWhere renders every clause of pred for remote evaluation. Unlike
// scan pushdown there is no local fallback: a direct modification filters
// nothing after the fact, so a clause that cannot be sent fails the whole
// predicate. The binding's pushdown switch does not apply here; it only
// governs scans.
func RemoteWhere(binding fdw.TableBinding, pred fdw.Predicate) ([]sq.Sqlizer, error) {
	caps := marshal.Caps{LargeObjects: binding.EnableBlobs}
	out := make([]sq.Sqlizer, 0, len(pred))
	for _, clause := range pred {
		col, ok := binding.Column(clause.Column)
		if !ok {
			return nil, fmt.Errorf("foreign table %q has no column %q", binding.LocalTable, clause.Column)
		}
		sqlizer, ok := clauseToSQL(col, clause, binding.Locale, caps)
		if !ok {
			return nil, fmt.Errorf("foreign table %q: clause on column %q cannot be evaluated remotely",
				binding.LocalTable, clause.Column)
		}
		out = append(out, sqlizer)
	}
	return out, nil
}

func clauseToSQL(col ifxtype.ColumnDescriptor, clause fdw.Clause, loc ifxtype.Locale, caps marshal.Caps) (sq.Sqlizer, bool) {
	if clause.Op == fdw.OpIn {
		if !marshal.MembershipPushdownEligible(col.Type, clause.Members) {
			return nil, false
		}
		// Membership degrades to per-value equality pushdown.
		var alternatives sq.Or
		for _, member := range clause.Members {
			d, err := marshal.Encode(col, member, loc, caps)
			if err != nil {
				return nil, false
			}
			alternatives = append(alternatives, sq.Eq{col.Name: d})
		}
		return alternatives, true
	}

	if !marshal.PushdownEligible(col.Type) || clause.Value.IsNull() {
		return nil, false
	}
	d, err := marshal.Encode(col, clause.Value, loc, caps)
	if err != nil {
		return nil, false
	}
	switch clause.Op {
	case fdw.OpEq:
		return sq.Eq{col.Name: d}, true
	case fdw.OpNotEq:
		return sq.NotEq{col.Name: d}, true
	case fdw.OpLt:
		return sq.Lt{col.Name: d}, true
	case fdw.OpLtOrEq:
		return sq.LtOrEq{col.Name: d}, true
	case fdw.OpGt:
		return sq.Gt{col.Name: d}, true
	case fdw.OpGtOrEq:
		return sq.GtOrEq{col.Name: d}, true
	default:
		return nil, false
	}
}

// datumArgs converts squirrel's bound arguments back into wire datums.
func datumArgs(args []interface{}) ([]ifxtype.Datum, bool) {
	out := make([]ifxtype.Datum, len(args))
	for i, a := range args {
		d, ok := a.(ifxtype.Datum)
		if !ok {
			return nil, false
		}
		out[i] = d
	}
	return out, true
}
