package ifxtype

import (
	"fmt"
	"strings"
	"time"
)

// Unit is a single field of an interval qualifier.
type Unit int

const (
	UnitYear Unit = iota
	UnitMonth
	UnitDay
	UnitHour
	UnitMinute
	UnitSecond
	UnitFraction
)

var unitNames = map[Unit]string{
	UnitYear:     "year",
	UnitMonth:    "month",
	UnitDay:      "day",
	UnitHour:     "hour",
	UnitMinute:   "minute",
	UnitSecond:   "second",
	UnitFraction: "fraction",
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// IntervalClass separates the two interval families the remote engine
// supports. A qualifier never spans both.
type IntervalClass int

const (
	ClassYearMonth IntervalClass = iota
	ClassDayFraction
)

const (
	// DefaultLeadingPrecision is the digit width of the leading field when
	// the column declares none.
	DefaultLeadingPrecision = 2

	// MaxLeadingPrecision is the largest declarable leading-field width.
	MaxLeadingPrecision = 9

	// MaxFractionPrecision is the largest declarable count of fractional
	// second digits.
	MaxFractionPrecision = 5
)

// IntervalQualifier describes the leading-to-trailing unit range of an
// interval column, e.g. "year to month" or "day(3) to second".
type IntervalQualifier struct {
	Leading           Unit
	Trailing          Unit
	LeadingPrecision  uint8
	FractionPrecision uint8
}

// YearToMonth and DayToSecond are the two qualifiers the bridge emits by
// default when a column declares none.
var (
	YearToMonth = IntervalQualifier{Leading: UnitYear, Trailing: UnitMonth}
	DayToSecond = IntervalQualifier{Leading: UnitDay, Trailing: UnitSecond}
)

// Class returns the interval family the qualifier belongs to.
func (q IntervalQualifier) Class() IntervalClass {
	if q.Leading <= UnitMonth {
		return ClassYearMonth
	}
	return ClassDayFraction
}

// Validate checks unit ordering, class consistency and precision bounds.
func (q IntervalQualifier) Validate() error {
	if q.Trailing < q.Leading {
		return fmt.Errorf("interval qualifier %s to %s: trailing unit precedes leading unit", q.Leading, q.Trailing)
	}
	lead, trail := q.Leading.intervalClass(), q.Trailing.intervalClass()
	if lead != trail {
		return fmt.Errorf("interval qualifier %s to %s mixes year-month and day-fraction fields", q.Leading, q.Trailing)
	}
	if q.LeadingPrecision > MaxLeadingPrecision {
		return fmt.Errorf("interval leading precision %d exceeds maximum %d", q.LeadingPrecision, MaxLeadingPrecision)
	}
	if q.FractionPrecision > MaxFractionPrecision {
		return fmt.Errorf("interval fraction precision %d exceeds maximum %d", q.FractionPrecision, MaxFractionPrecision)
	}
	return nil
}

func (u Unit) intervalClass() IntervalClass {
	if u <= UnitMonth {
		return ClassYearMonth
	}
	return ClassDayFraction
}

// LeadingDigits returns the effective digit width of the leading field.
func (q IntervalQualifier) LeadingDigits() int {
	if q.LeadingPrecision == 0 {
		return DefaultLeadingPrecision
	}
	return int(q.LeadingPrecision)
}

func (q IntervalQualifier) String() string {
	var sb strings.Builder
	sb.WriteString(q.Leading.String())
	if q.LeadingPrecision != 0 {
		fmt.Fprintf(&sb, "(%d)", q.LeadingPrecision)
	}
	sb.WriteString(" to ")
	sb.WriteString(q.Trailing.String())
	if q.Trailing == UnitFraction && q.FractionPrecision != 0 {
		fmt.Fprintf(&sb, "(%d)", q.FractionPrecision)
	}
	return sb.String()
}

// IntervalValue is a signed span of time in one of the two interval
// families. Year-month intervals count months; day-fraction intervals
// count seconds plus a nanosecond remainder carrying the same sign.
type IntervalValue struct {
	Qualifier IntervalQualifier
	Months    int64
	Seconds   int64
	Nanos     int64
}

// YearMonthInterval builds a year-month class interval from a month count.
func YearMonthInterval(months int64) IntervalValue {
	return IntervalValue{Qualifier: YearToMonth, Months: months}
}

// DayFractionInterval builds a day-fraction class interval from a duration.
func DayFractionInterval(d time.Duration) IntervalValue {
	return IntervalValue{
		Qualifier: DayToSecond,
		Seconds:   int64(d / time.Second),
		Nanos:     int64(d % time.Second),
	}
}

// Class returns the family of the interval value.
func (iv IntervalValue) Class() IntervalClass {
	return iv.Qualifier.Class()
}

// Duration converts a day-fraction interval to a time.Duration.
func (iv IntervalValue) Duration() time.Duration {
	return time.Duration(iv.Seconds)*time.Second + time.Duration(iv.Nanos)
}

// TruncateFraction returns the interval with sub-second digits beyond n
// dropped. n == 0 drops the fraction entirely.
func (iv IntervalValue) TruncateFraction(n int) IntervalValue {
	if n >= 9 {
		return iv
	}
	div := int64(1)
	for i := 0; i < 9-n; i++ {
		div *= 10
	}
	iv.Nanos = (iv.Nanos / div) * div
	return iv
}

func (iv IntervalValue) Equal(other IntervalValue) bool {
	return iv.Qualifier == other.Qualifier &&
		iv.Months == other.Months &&
		iv.Seconds == other.Seconds &&
		iv.Nanos == other.Nanos
}

func (iv IntervalValue) String() string {
	if iv.Class() == ClassYearMonth {
		return fmt.Sprintf("%d-%02d", iv.Months/12, abs64(iv.Months%12))
	}
	secs := iv.Seconds
	sign := ""
	if secs < 0 || (secs == 0 && iv.Nanos < 0) {
		sign = "-"
	}
	secs = abs64(secs)
	days := secs / 86400
	secs %= 86400
	base := fmt.Sprintf("%s%d %02d:%02d:%02d", sign, days, secs/3600, (secs%3600)/60, secs%60)
	if iv.Nanos != 0 {
		frac := fmt.Sprintf("%09d", abs64(iv.Nanos))
		base += "." + strings.TrimRight(frac, "0")
	}
	return base
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
