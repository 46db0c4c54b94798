package marshal

import "github.com/credativ/informix-fdw-sub001/pkg/ifxtype"

// PushdownEligible reports whether a remote type has an unambiguous,
// information-preserving literal representation and may therefore appear
// in a pushed-down WHERE clause. Interval and datetime values are never
// pushed down: their literal form depends on locale and qualifier.
func PushdownEligible(t ifxtype.Type) bool {
	switch t {
	case ifxtype.SmallInt, ifxtype.Integer, ifxtype.Serial,
		ifxtype.Int8, ifxtype.Serial8, ifxtype.BigInt,
		ifxtype.Decimal, ifxtype.Money,
		ifxtype.Char, ifxtype.NChar:
		return true
	default:
		return false
	}
}

// MembershipPushdownEligible reports whether a membership predicate over
// the given column type and member values may be degraded to per-value
// equality pushdown. Every member must itself be eligible and non-null.
func MembershipPushdownEligible(t ifxtype.Type, members []ifxtype.Value) bool {
	if !PushdownEligible(t) || len(members) == 0 {
		return false
	}
	for _, m := range members {
		if m.IsNull() {
			return false
		}
	}
	return true
}
