package marshal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

var (
	yearMonthRe   = regexp.MustCompile(`^(-?)(\d+)-(\d{1,2})$`)
	dayFractionRe = regexp.MustCompile(`^(-?)(\d+) (\d{1,2}):(\d{1,2}):(\d{1,2})(?:\.(\d{1,9}))?$`)
)

func decodeInterval(col ifxtype.ColumnDescriptor, d ifxtype.Datum) (ifxtype.Value, error) {
	q := col.Qualifier
	if err := q.Validate(); err != nil {
		return ifxtype.Value{}, NewTypeMismatchErr(col, "%v", err)
	}
	switch q.Class() {
	case ifxtype.ClassYearMonth:
		m := yearMonthRe.FindStringSubmatch(d.Text)
		if m == nil {
			return ifxtype.Value{}, NewParseErr(col, "malformed year-month interval %q", d.Text)
		}
		years, _ := strconv.ParseInt(m[2], 10, 64)
		months, _ := strconv.ParseInt(m[3], 10, 64)
		total := years*12 + months
		if m[1] == "-" {
			total = -total
		}
		iv := ifxtype.IntervalValue{Qualifier: q, Months: total}
		return ifxtype.IntervalVal(iv), nil
	default:
		m := dayFractionRe.FindStringSubmatch(d.Text)
		if m == nil {
			return ifxtype.Value{}, NewParseErr(col, "malformed day-fraction interval %q", d.Text)
		}
		days, _ := strconv.ParseInt(m[2], 10, 64)
		hours, _ := strconv.ParseInt(m[3], 10, 64)
		mins, _ := strconv.ParseInt(m[4], 10, 64)
		secs, _ := strconv.ParseInt(m[5], 10, 64)
		total := days*86400 + hours*3600 + mins*60 + secs
		var nanos int64
		if m[6] != "" {
			frac := m[6] + strings.Repeat("0", 9-len(m[6]))
			nanos, _ = strconv.ParseInt(frac, 10, 64)
		}
		if m[1] == "-" {
			total, nanos = -total, -nanos
		}
		iv := ifxtype.IntervalValue{Qualifier: q, Seconds: total, Nanos: nanos}
		// Decode preserves the fraction only to the declared precision.
		iv = iv.TruncateFraction(fractionDigits(q))
		return ifxtype.IntervalVal(iv), nil
	}
}

func fractionDigits(q ifxtype.IntervalQualifier) int {
	if q.Trailing != ifxtype.UnitFraction {
		return 0
	}
	if q.FractionPrecision == 0 {
		return ifxtype.MaxFractionPrecision
	}
	return int(q.FractionPrecision)
}

func encodeInterval(col ifxtype.ColumnDescriptor, v ifxtype.Value) (ifxtype.Datum, error) {
	iv, ok := v.AsInterval()
	if !ok {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "cannot encode %s into %s", v.Kind(), col.Type)
	}
	q := col.Qualifier
	if err := q.Validate(); err != nil {
		return ifxtype.Datum{}, NewTypeMismatchErr(col, "%v", err)
	}
	// The qualifier is implied by the column definition; a value of the
	// other interval family cannot be represented within its field bounds.
	if iv.Class() != q.Class() {
		return ifxtype.Datum{}, NewRangeErr(col, "%s interval cannot be represented in a %s field", className(iv.Class()), q)
	}

	limit := pow10(q.LeadingDigits())
	switch q.Class() {
	case ifxtype.ClassYearMonth:
		leading := abs(iv.Months)
		if q.Leading == ifxtype.UnitYear {
			leading = abs(iv.Months) / 12
		}
		if leading >= limit {
			return ifxtype.Datum{}, NewRangeErr(col, "interval %s exceeds %s field width", iv, q)
		}
		months := iv.Months
		if q.Trailing == ifxtype.UnitYear {
			months = (months / 12) * 12
		}
		out := ifxtype.IntervalValue{Qualifier: q, Months: months}
		return ifxtype.TextDatum(col.Type, out.String()), nil

	default:
		var leading int64
		switch q.Leading {
		case ifxtype.UnitDay:
			leading = abs(iv.Seconds) / 86400
		case ifxtype.UnitHour:
			leading = abs(iv.Seconds) / 3600
		case ifxtype.UnitMinute:
			leading = abs(iv.Seconds) / 60
		default:
			leading = abs(iv.Seconds)
		}
		if leading >= limit {
			return ifxtype.Datum{}, NewRangeErr(col, "interval %s exceeds %s field width", iv, q)
		}
		// Sub-second fractions are silently dropped on encode; fields
		// finer than the trailing unit are truncated the same way.
		out := ifxtype.IntervalValue{Qualifier: q, Seconds: truncateToUnit(iv.Seconds, q.Trailing)}
		return ifxtype.TextDatum(col.Type, out.String()), nil
	}
}

func truncateToUnit(seconds int64, trailing ifxtype.Unit) int64 {
	switch trailing {
	case ifxtype.UnitDay:
		return (seconds / 86400) * 86400
	case ifxtype.UnitHour:
		return (seconds / 3600) * 3600
	case ifxtype.UnitMinute:
		return (seconds / 60) * 60
	default:
		return seconds
	}
}

func className(c ifxtype.IntervalClass) string {
	if c == ifxtype.ClassYearMonth {
		return "year-month"
	}
	return "day-fraction"
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FormatQualifier renders a qualifier the way the remote engine spells it
// in DDL, mostly useful in error and log output.
func FormatQualifier(q ifxtype.IntervalQualifier) string {
	return fmt.Sprintf("interval %s", q)
}
