package marshal

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// ConversionReason is the reason a value could not be converted.
type ConversionReason int

const (
	// ReasonRange indicates the value exceeds the remote column's declared
	// width or field bounds.
	ReasonRange ConversionReason = iota

	// ReasonPrecision indicates a fixed-point value whose integer digits
	// exceed precision minus scale.
	ReasonPrecision

	// ReasonCapability indicates a large-object value on a binding without
	// large-object handling enabled.
	ReasonCapability

	// ReasonTypeMismatch indicates payload and column type disagree in a
	// way that must fail at bind time.
	ReasonTypeMismatch

	// ReasonParse indicates a malformed wire representation.
	ReasonParse
)

var reasonNames = map[ConversionReason]string{
	ReasonRange:        "range",
	ReasonPrecision:    "precision",
	ReasonCapability:   "capability",
	ReasonTypeMismatch: "type-mismatch",
	ReasonParse:        "parse",
}

func (r ConversionReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// ConversionError occurs when a value cannot be converted between the
// local and remote type systems. It is surfaced per value and never kills
// the owning connection.
type ConversionError struct {
	error
	column string
	reason ConversionReason
}

// Column is the name of the column whose value failed to convert.
func (err ConversionError) Column() string { return err.column }

// Reason is the conversion failure class.
func (err ConversionError) Reason() ConversionReason { return err.reason }

// MarshalZerologObject implements zerolog object marshalling.
func (err ConversionError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("column", err.column).Str("reason", err.reason.String())
}

// NewRangeErr constructs a conversion error for an out-of-range value.
func NewRangeErr(col ifxtype.ColumnDescriptor, format string, args ...any) error {
	return ConversionError{
		error:  fmt.Errorf("column %q: %s", col.Name, fmt.Sprintf(format, args...)),
		column: col.Name,
		reason: ReasonRange,
	}
}

// NewPrecisionErr constructs a conversion error for integer-digit overflow
// of a fixed-point value.
func NewPrecisionErr(col ifxtype.ColumnDescriptor, format string, args ...any) error {
	return ConversionError{
		error:  fmt.Errorf("column %q: %s", col.Name, fmt.Sprintf(format, args...)),
		column: col.Name,
		reason: ReasonPrecision,
	}
}

// NewCapabilityErr constructs a conversion error for a large-object value
// on a binding without large-object support enabled.
func NewCapabilityErr(col ifxtype.ColumnDescriptor, format string, args ...any) error {
	return ConversionError{
		error:  fmt.Errorf("column %q: %s", col.Name, fmt.Sprintf(format, args...)),
		column: col.Name,
		reason: ReasonCapability,
	}
}

// NewTypeMismatchErr constructs a conversion error for a payload/column
// type disagreement.
func NewTypeMismatchErr(col ifxtype.ColumnDescriptor, format string, args ...any) error {
	return ConversionError{
		error:  fmt.Errorf("column %q: %s", col.Name, fmt.Sprintf(format, args...)),
		column: col.Name,
		reason: ReasonTypeMismatch,
	}
}

// NewParseErr constructs a conversion error for a malformed wire value.
func NewParseErr(col ifxtype.ColumnDescriptor, format string, args ...any) error {
	return ConversionError{
		error:  fmt.Errorf("column %q: %s", col.Name, fmt.Sprintf(format, args...)),
		column: col.Name,
		reason: ReasonParse,
	}
}
