// Package marshal converts values between the local tagged union and the
// remote engine's wire representation. All functions are pure: locale and
// capability flags are explicit parameters, never process state.
package marshal

import (
	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// InlineByteLimit is the largest byte payload stored inline in a row;
// anything beyond it must be backed by a remote large object.
const InlineByteLimit = 2048

// Caps carries the per-binding capabilities a conversion is allowed to
// rely on.
type Caps struct {
	// LargeObjects permits decoding and encoding of large-object backed
	// columns (byte/text blobs and oversized payloads).
	LargeObjects bool
}

// Decode converts one wire datum fetched from the remote engine into the
// local value union, enforcing the column's declared metadata.
func Decode(col ifxtype.ColumnDescriptor, d ifxtype.Datum, loc ifxtype.Locale, caps Caps) (ifxtype.Value, error) {
	loc = loc.WithDefaults()
	if d.Null {
		return ifxtype.NullValue(), nil
	}
	switch col.Type {
	case ifxtype.SmallInt, ifxtype.Integer, ifxtype.Serial, ifxtype.Int8, ifxtype.Serial8, ifxtype.BigInt:
		return decodeInteger(col, d)
	case ifxtype.Decimal, ifxtype.Money:
		return decodeDecimal(col, d)
	case ifxtype.Float, ifxtype.SmallFloat:
		return decodeFloat(col, d)
	case ifxtype.Date:
		return decodeDate(col, d, loc)
	case ifxtype.DateTime:
		return decodeDateTime(col, d, loc)
	case ifxtype.Interval:
		return decodeInterval(col, d)
	case ifxtype.Boolean:
		return decodeBool(col, d)
	case ifxtype.Char, ifxtype.VarChar, ifxtype.NChar, ifxtype.NVarChar, ifxtype.LVarChar:
		return decodeCharacter(col, d, loc, caps)
	case ifxtype.Bytes, ifxtype.Text:
		return decodeLargeObject(col, d, caps)
	default:
		return ifxtype.Value{}, NewTypeMismatchErr(col, "no conversion for remote type %s", col.Type)
	}
}

// Encode converts a local value into the wire form expected by the remote
// column, failing with a ConversionError when the value does not fit the
// column's declared width, precision or capabilities. Out-of-range values
// are never clamped.
func Encode(col ifxtype.ColumnDescriptor, v ifxtype.Value, loc ifxtype.Locale, caps Caps) (ifxtype.Datum, error) {
	loc = loc.WithDefaults()
	if v.IsNull() {
		if col.NotNull {
			return ifxtype.Datum{}, NewTypeMismatchErr(col, "NULL not allowed in NOT NULL column")
		}
		return ifxtype.NullDatum(col.Type), nil
	}
	switch col.Type {
	case ifxtype.SmallInt, ifxtype.Integer, ifxtype.Serial, ifxtype.Int8, ifxtype.Serial8, ifxtype.BigInt:
		return encodeInteger(col, v)
	case ifxtype.Decimal, ifxtype.Money:
		return encodeDecimal(col, v)
	case ifxtype.Float, ifxtype.SmallFloat:
		return encodeFloat(col, v)
	case ifxtype.Date:
		return encodeDate(col, v, loc)
	case ifxtype.DateTime:
		return encodeDateTime(col, v, loc)
	case ifxtype.Interval:
		return encodeInterval(col, v)
	case ifxtype.Boolean:
		return encodeBool(col, v)
	case ifxtype.Char, ifxtype.VarChar, ifxtype.NChar, ifxtype.NVarChar, ifxtype.LVarChar:
		return encodeCharacter(col, v, loc, caps)
	case ifxtype.Bytes, ifxtype.Text:
		return encodeLargeObject(col, v, caps)
	default:
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "no conversion for remote type %s", col.Type)
	}
}

// DecodeRow converts one fetched row.
func DecodeRow(cols []ifxtype.ColumnDescriptor, data []ifxtype.Datum, loc ifxtype.Locale, caps Caps) ([]ifxtype.Value, error) {
	if len(cols) != len(data) {
		return nil, NewTypeMismatchErr(ifxtype.ColumnDescriptor{Name: "*"}, "row has %d columns, descriptor has %d", len(data), len(cols))
	}
	out := make([]ifxtype.Value, len(data))
	for i, d := range data {
		v, err := Decode(cols[i], d, loc, caps)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
