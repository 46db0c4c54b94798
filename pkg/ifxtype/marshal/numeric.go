package marshal

import (
	"strconv"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/shopspring/decimal"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

func decodeInteger(col ifxtype.ColumnDescriptor, d ifxtype.Datum) (ifxtype.Value, error) {
	v, err := strconv.ParseInt(d.Text, 10, 64)
	if err != nil {
		return ifxtype.Value{}, NewParseErr(col, "malformed integer %q", d.Text)
	}
	if err := checkIntegerWidth(col, v); err != nil {
		return ifxtype.Value{}, err
	}
	return ifxtype.Int64Value(v), nil
}

func encodeInteger(col ifxtype.ColumnDescriptor, v ifxtype.Value) (ifxtype.Datum, error) {
	iv, ok := v.AsInt64()
	if !ok {
		// Fixed-point values holding an exact integer are acceptable for
		// an integer column; anything fractional is not.
		dec, isDec := v.AsDecimal()
		if !isDec || !dec.IsInteger() {
			return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
		}
		if !dec.BigInt().IsInt64() {
			return ifxtype.Datum{}, NewRangeErr(col, "value %s exceeds 64-bit range", dec)
		}
		iv = dec.IntPart()
	}
	if err := checkIntegerWidth(col, iv); err != nil {
		return ifxtype.Datum{}, err
	}
	return ifxtype.TextDatum(col.Type, strconv.FormatInt(iv, 10)), nil
}

func checkIntegerWidth(col ifxtype.ColumnDescriptor, v int64) error {
	switch col.Type.IntegerBits() {
	case 16:
		if _, err := safecast.Convert[int16](v); err != nil {
			return NewRangeErr(col, "value %d exceeds %s range", v, col.Type)
		}
	case 32:
		if _, err := safecast.Convert[int32](v); err != nil {
			return NewRangeErr(col, "value %d exceeds %s range", v, col.Type)
		}
	}
	return nil
}

func decodeDecimal(col ifxtype.ColumnDescriptor, d ifxtype.Datum) (ifxtype.Value, error) {
	dec, err := decimal.NewFromString(d.Text)
	if err != nil {
		return ifxtype.Value{}, NewParseErr(col, "malformed decimal %q", d.Text)
	}
	if digits := integerDigits(dec); digits > col.Precision-col.Scale {
		return ifxtype.Value{}, NewPrecisionErr(col, "%d integer digits exceed precision %d scale %d", digits, col.Precision, col.Scale)
	}
	return ifxtype.DecimalValue(dec.Truncate(int32(col.Scale))), nil
}

func encodeDecimal(col ifxtype.ColumnDescriptor, v ifxtype.Value) (ifxtype.Datum, error) {
	dec, ok := coerceDecimal(v)
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	// The integer part must fit; fractional digits beyond the declared
	// scale are truncated, which is the documented lossy case.
	if digits := integerDigits(dec); digits > col.Precision-col.Scale {
		return ifxtype.Datum{}, NewPrecisionErr(col, "%d integer digits exceed precision %d scale %d", digits, col.Precision, col.Scale)
	}
	return ifxtype.TextDatum(col.Type, dec.Truncate(int32(col.Scale)).String()), nil
}

func decodeFloat(col ifxtype.ColumnDescriptor, d ifxtype.Datum) (ifxtype.Value, error) {
	dec, err := decimal.NewFromString(d.Text)
	if err != nil {
		return ifxtype.Value{}, NewParseErr(col, "malformed float %q", d.Text)
	}
	return ifxtype.DecimalValue(dec), nil
}

func encodeFloat(col ifxtype.ColumnDescriptor, v ifxtype.Value) (ifxtype.Datum, error) {
	dec, ok := coerceDecimal(v)
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	return ifxtype.TextDatum(col.Type, dec.String()), nil
}

func coerceDecimal(v ifxtype.Value) (decimal.Decimal, bool) {
	if dec, ok := v.AsDecimal(); ok {
		return dec, true
	}
	if iv, ok := v.AsInt64(); ok {
		return decimal.NewFromInt(iv), true
	}
	return decimal.Decimal{}, false
}

// integerDigits counts the digits left of the decimal point, with zero
// values counting as zero digits.
func integerDigits(d decimal.Decimal) int {
	whole := d.Abs().Truncate(0)
	if whole.IsZero() {
		return 0
	}
	return len(whole.String())
}
