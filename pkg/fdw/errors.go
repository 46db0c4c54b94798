package fdw

import (
	"fmt"

	"github.com/rs/zerolog"
)

// UnsupportedPlanError occurs when a cursor-strategy modification runs
// under a plan shape the cursor cannot position correctly. It is raised
// before any remote statement is sent, so no partial effect occurs.
type UnsupportedPlanError struct {
	error
	plan ModifyPlan
}

// Plan is the rejected plan shape.
func (err UnsupportedPlanError) Plan() ModifyPlan { return err.plan }

// MarshalZerologObject implements zerolog object marshalling.
func (err UnsupportedPlanError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).
		Bool("pre_materialized", err.plan.PreMaterialized).
		Bool("reordering", err.plan.Reordering)
}

// NewUnsupportedPlanErr constructs a new unsupported modify plan error.
func NewUnsupportedPlanErr(plan ModifyPlan) error {
	return UnsupportedPlanError{
		error: fmt.Errorf("unsupported modify plan: cursor strategy cannot position rows under a pre-materializing or re-ordering plan"),
		plan:  plan,
	}
}

// ColumnMismatchError occurs when a binding's declared columns do not
// match the remote result shape in count or convertibility. It is raised
// at open time; no rows are ever returned.
type ColumnMismatchError struct {
	error
	table    string
	expected int
	actual   int
}

// Table is the local table whose binding mismatched.
func (err ColumnMismatchError) Table() string { return err.table }

// Expected is the binding's declared column count.
func (err ColumnMismatchError) Expected() int { return err.expected }

// Actual is the column count the remote statement produced.
func (err ColumnMismatchError) Actual() int { return err.actual }

// MarshalZerologObject implements zerolog object marshalling.
func (err ColumnMismatchError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).
		Str("table", err.table).
		Int("expected", err.expected).
		Int("actual", err.actual)
}

// NewColumnCountMismatchErr constructs a mismatch error for differing
// column counts.
func NewColumnCountMismatchErr(table string, expected, actual int) error {
	return ColumnMismatchError{
		error:    fmt.Errorf("foreign table %q declares %d columns but remote result has %d", table, expected, actual),
		table:    table,
		expected: expected,
		actual:   actual,
	}
}

// NewColumnConvertMismatchErr constructs a mismatch error for a column
// whose remote type cannot be converted to the declared local type.
func NewColumnConvertMismatchErr(table, column string, expected, actual fmt.Stringer) error {
	return ColumnMismatchError{
		error: fmt.Errorf("foreign table %q column %q: remote type %s is not convertible to declared type %s",
			table, column, actual, expected),
		table: table,
	}
}
