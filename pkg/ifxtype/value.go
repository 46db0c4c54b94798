package ifxtype

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind tags the payload carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt64
	KindDecimal
	KindInterval
	KindDate
	KindTimestamp
	KindBool
	KindText
	KindBytes
)

var kindNames = map[ValueKind]string{
	KindNull:      "null",
	KindInt64:     "int64",
	KindDecimal:   "decimal",
	KindInterval:  "interval",
	KindDate:      "date",
	KindTimestamp: "timestamp",
	KindBool:      "bool",
	KindText:      "text",
	KindBytes:     "bytes",
}

func (k ValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the local representation of one remote column value: a tagged
// union over the convertible type families. The zero Value is NULL.
type Value struct {
	kind ValueKind

	i64      int64
	dec      decimal.Decimal
	interval IntervalValue
	ts       time.Time
	withZone bool
	b        bool
	text     string
	locale   string
	raw      []byte
	lob      bool
}

// NullValue returns the NULL value. NULL is representable for every column
// type and never converts to a sentinel non-null value.
func NullValue() Value { return Value{kind: KindNull} }

// Int64Value wraps a fixed-width integer.
func Int64Value(v int64) Value { return Value{kind: KindInt64, i64: v} }

// DecimalValue wraps a fixed-point decimal.
func DecimalValue(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }

// IntervalVal wraps an interval span.
func IntervalVal(iv IntervalValue) Value { return Value{kind: KindInterval, interval: iv} }

// DateValue wraps a calendar date; the time-of-day portion is discarded.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, ts: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// TimestampValue wraps a combined date-time. withZone records whether the
// local column retains the zone offset.
func TimestampValue(t time.Time, withZone bool) Value {
	return Value{kind: KindTimestamp, ts: t, withZone: withZone}
}

// BoolValue wraps a boolean.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// TextValue wraps character data tagged with the locale it was decoded
// under.
func TextValue(s, locale string) Value {
	return Value{kind: KindText, text: s, locale: locale}
}

// BytesValue wraps an inline byte sequence.
func BytesValue(p []byte) Value { return Value{kind: KindBytes, raw: p} }

// LargeObjectValue wraps a byte sequence backed by remote large-object
// storage.
func LargeObjectValue(p []byte) Value { return Value{kind: KindBytes, raw: p, lob: true} }

// Kind returns the union tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsInt64() (int64, bool) {
	return v.i64, v.kind == KindInt64
}

func (v Value) AsDecimal() (decimal.Decimal, bool) {
	return v.dec, v.kind == KindDecimal
}

func (v Value) AsInterval() (IntervalValue, bool) {
	return v.interval, v.kind == KindInterval
}

// AsTime returns the temporal payload for both date and timestamp kinds.
func (v Value) AsTime() (time.Time, bool) {
	return v.ts, v.kind == KindDate || v.kind == KindTimestamp
}

// HasZone reports whether a timestamp value retains its zone offset.
func (v Value) HasZone() bool { return v.withZone }

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// TextLocale returns the locale tag attached to a text value.
func (v Value) TextLocale() string { return v.locale }

func (v Value) AsBytes() ([]byte, bool) {
	return v.raw, v.kind == KindBytes
}

// IsLargeObject reports whether a bytes value is backed by a remote large
// object rather than stored inline.
func (v Value) IsLargeObject() bool { return v.lob }

// Equal compares two values. NULL equals nothing, including NULL, matching
// the local engine's NULL semantics; use IsNull for NULL tests.
func (v Value) Equal(other Value) bool {
	if v.kind == KindNull || other.kind == KindNull {
		return false
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt64:
		return v.i64 == other.i64
	case KindDecimal:
		return v.dec.Equal(other.dec)
	case KindInterval:
		return v.interval.Equal(other.interval)
	case KindDate, KindTimestamp:
		return v.ts.Equal(other.ts) && v.withZone == other.withZone
	case KindBool:
		return v.b == other.b
	case KindText:
		return v.text == other.text
	case KindBytes:
		return bytes.Equal(v.raw, other.raw)
	default:
		return false
	}
}

// Compare orders two non-null values of the same kind. The bool result is
// false when the values are not comparable (differing kinds or NULL).
func (v Value) Compare(other Value) (int, bool) {
	if v.kind == KindNull || other.kind == KindNull || v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindInt64:
		return cmp64(v.i64, other.i64), true
	case KindDecimal:
		return v.dec.Cmp(other.dec), true
	case KindInterval:
		// Intervals order within their family only; year-month and
		// day-fraction spans have no common scale.
		if v.interval.Class() != other.interval.Class() {
			return 0, false
		}
		if v.interval.Class() == ClassYearMonth {
			return cmp64(v.interval.Months, other.interval.Months), true
		}
		if c := cmp64(v.interval.Seconds, other.interval.Seconds); c != 0 {
			return c, true
		}
		return cmp64(v.interval.Nanos, other.interval.Nanos), true
	case KindDate, KindTimestamp:
		return v.ts.Compare(other.ts), true
	case KindText:
		switch {
		case v.text < other.text:
			return -1, true
		case v.text > other.text:
			return 1, true
		}
		return 0, true
	case KindBytes:
		return bytes.Compare(v.raw, other.raw), true
	default:
		return 0, false
	}
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindDecimal:
		return v.dec.String()
	case KindInterval:
		return v.interval.String()
	case KindDate:
		return v.ts.Format("2006-01-02")
	case KindTimestamp:
		return v.ts.Format("2006-01-02 15:04:05")
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindText:
		return v.text
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.raw))
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}
