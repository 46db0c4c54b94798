// Package cursor implements the scan/modify execution engine: one remote
// cursor per active operation, opened over a prepared statement with the
// pushdown-eligible predicate bound, decoding rows through the type
// marshaller.
package cursor

import "github.com/credativ/informix-fdw-sub001/pkg/ifxtype"

// CanConvert reports whether a value of the remote type actually produced
// by a statement can be marshalled into the type a binding declares for
// the same position. Anything not listed is a hard mismatch, never a
// silent coercion.
func CanConvert(actual, declared ifxtype.Type) bool {
	if actual == declared {
		return true
	}
	switch {
	case actual.IsInteger() && declared.IsInteger():
		// Widening is always safe; narrowing is checked per value by the
		// marshaller, so the shapes remain compatible.
		return true
	case actual.IsInteger() && (declared == ifxtype.Decimal || declared == ifxtype.Money):
		return true
	case (actual == ifxtype.Decimal || actual == ifxtype.Money) &&
		(declared == ifxtype.Decimal || declared == ifxtype.Money):
		return true
	case (actual == ifxtype.Float || actual == ifxtype.SmallFloat) &&
		(declared == ifxtype.Float || declared == ifxtype.SmallFloat):
		return true
	case actual.IsCharacter() && declared.IsCharacter():
		return true
	case actual.IsLargeObject() && declared.IsLargeObject():
		return true
	default:
		// Date never converts to DateTime implicitly, nor the reverse;
		// interval qualifiers must match exactly through the descriptor.
		return false
	}
}
