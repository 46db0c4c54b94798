package marshal

import (
	"unicode/utf8"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

func decodeBool(col ifxtype.ColumnDescriptor, d ifxtype.Datum) (ifxtype.Value, error) {
	switch d.Text {
	case "t":
		return ifxtype.BoolValue(true), nil
	case "f":
		return ifxtype.BoolValue(false), nil
	default:
		return ifxtype.Value{}, NewParseErr(col, "malformed boolean %q", d.Text)
	}
}

func encodeBool(col ifxtype.ColumnDescriptor, v ifxtype.Value) (ifxtype.Datum, error) {
	b, ok := v.AsBool()
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	if b {
		return ifxtype.TextDatum(ifxtype.Boolean, "t"), nil
	}
	return ifxtype.TextDatum(ifxtype.Boolean, "f"), nil
}

func decodeCharacter(col ifxtype.ColumnDescriptor, d ifxtype.Datum, loc ifxtype.Locale, caps Caps) (ifxtype.Value, error) {
	if len(d.Text) > InlineByteLimit && !caps.LargeObjects {
		return ifxtype.Value{}, NewCapabilityErr(col, "value of %d bytes exceeds inline capacity and large objects are not enabled", len(d.Text))
	}
	if err := checkCharacterLength(col, d.Text); err != nil {
		return ifxtype.Value{}, err
	}
	return ifxtype.TextValue(d.Text, loc.DBLocale), nil
}

func encodeCharacter(col ifxtype.ColumnDescriptor, v ifxtype.Value, loc ifxtype.Locale, caps Caps) (ifxtype.Datum, error) {
	s, ok := v.AsText()
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	if len(s) > InlineByteLimit && !caps.LargeObjects {
		return ifxtype.Datum{}, NewCapabilityErr(col, "value of %d bytes exceeds inline capacity and large objects are not enabled", len(s))
	}
	if err := checkCharacterLength(col, s); err != nil {
		return ifxtype.Datum{}, err
	}
	return ifxtype.TextDatum(col.Type, s), nil
}

// checkCharacterLength measures multibyte columns in runes and single-byte
// columns in bytes, per the remote engine's length semantics.
func checkCharacterLength(col ifxtype.ColumnDescriptor, s string) error {
	if col.Length <= 0 {
		return nil
	}
	length := len(s)
	if col.Type.IsMultiByte() {
		length = utf8.RuneCountInString(s)
	}
	if length > col.Length {
		return NewRangeErr(col, "value length %d exceeds declared length %d", length, col.Length)
	}
	return nil
}

func decodeLargeObject(col ifxtype.ColumnDescriptor, d ifxtype.Datum, caps Caps) (ifxtype.Value, error) {
	if !caps.LargeObjects {
		return ifxtype.Value{}, NewCapabilityErr(col, "large-object column requires enable_blobs on the binding")
	}
	if col.Type == ifxtype.Text {
		return ifxtype.LargeObjectValue([]byte(d.Text)), nil
	}
	return ifxtype.LargeObjectValue(d.Raw), nil
}

func encodeLargeObject(col ifxtype.ColumnDescriptor, v ifxtype.Value, caps Caps) (ifxtype.Datum, error) {
	if !caps.LargeObjects {
		return ifxtype.Datum{}, NewCapabilityErr(col, "large-object column requires enable_blobs on the binding")
	}
	switch v.Kind() {
	case ifxtype.KindBytes:
		p, _ := v.AsBytes()
		if col.Type == ifxtype.Text {
			return ifxtype.TextDatum(ifxtype.Text, string(p)), nil
		}
		return ifxtype.RawDatum(ifxtype.Bytes, p), nil
	case ifxtype.KindText:
		s, _ := v.AsText()
		if col.Type == ifxtype.Text {
			return ifxtype.TextDatum(ifxtype.Text, s), nil
		}
		return ifxtype.RawDatum(ifxtype.Bytes, []byte(s)), nil
	default:
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
}
