package marshal

import (
	"time"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

func decodeDate(col ifxtype.ColumnDescriptor, d ifxtype.Datum, loc ifxtype.Locale) (ifxtype.Value, error) {
	if d.Tag == ifxtype.DateTime {
		// A combined date-time arriving for a legacy date column is a
		// bind-time mismatch, never a silent truncation.
		return ifxtype.Value{}, NewTypeMismatchErr(col, "remote value is a datetime, column expects a date")
	}
	t, err := time.Parse(loc.DateFormat, d.Text)
	if err != nil {
		return ifxtype.Value{}, NewParseErr(col, "malformed date %q under format %q", d.Text, loc.DateFormat)
	}
	return ifxtype.DateValue(t), nil
}

func encodeDate(col ifxtype.ColumnDescriptor, v ifxtype.Value, loc ifxtype.Locale) (ifxtype.Datum, error) {
	t, ok := v.AsTime()
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	if v.Kind() == ifxtype.KindTimestamp {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "local value is a timestamp, column expects a date")
	}
	return ifxtype.TextDatum(ifxtype.Date, t.Format(loc.DateFormat)), nil
}

func decodeDateTime(col ifxtype.ColumnDescriptor, d ifxtype.Datum, loc ifxtype.Locale) (ifxtype.Value, error) {
	if d.Tag == ifxtype.Date {
		return ifxtype.Value{}, NewTypeMismatchErr(col, "remote value is a date, column expects a datetime")
	}
	t, err := time.Parse(loc.DateTimeFormat, d.Text)
	if err != nil {
		return ifxtype.Value{}, NewParseErr(col, "malformed datetime %q under format %q", d.Text, loc.DateTimeFormat)
	}
	// The remote engine stores no zone offset; decoded timestamps are
	// zoneless by construction.
	return ifxtype.TimestampValue(t, false), nil
}

func encodeDateTime(col ifxtype.ColumnDescriptor, v ifxtype.Value, loc ifxtype.Locale) (ifxtype.Datum, error) {
	t, ok := v.AsTime()
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	if v.Kind() == ifxtype.KindDate {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "local value is a date, column expects a datetime")
	}
	if v.HasZone() {
		// Zone-carrying timestamps are normalized to UTC before encoding;
		// the remote field has no offset to keep.
		t = t.UTC()
	}
	return ifxtype.TextDatum(ifxtype.DateTime, t.Format(loc.DateTimeFormat)), nil
}
