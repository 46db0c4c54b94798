// Package ifxtype models the remote engine's type system: the wire-level
// type tags, interval qualifiers, column descriptors and the tagged value
// union exchanged between the bridge core and the remote session layer.
package ifxtype

import "fmt"

// Type is a remote column type tag. The numbering follows the remote
// engine's sqltypes table so that tags received from a statement descriptor
// can be used directly.
type Type int

const (
	Char       Type = 0
	SmallInt   Type = 1
	Integer    Type = 2
	Float      Type = 3
	SmallFloat Type = 4
	Decimal    Type = 5
	Serial     Type = 6
	Date       Type = 7
	Money      Type = 8
	NullType   Type = 9
	DateTime   Type = 10
	Bytes      Type = 11
	Text       Type = 12
	VarChar    Type = 13
	Interval   Type = 14
	NChar      Type = 15
	NVarChar   Type = 16
	Int8       Type = 17
	Serial8    Type = 18

	LVarChar Type = 43
	Boolean  Type = 45
	BigInt   Type = 52
)

var typeNames = map[Type]string{
	Char:       "char",
	SmallInt:   "smallint",
	Integer:    "integer",
	Float:      "float",
	SmallFloat: "smallfloat",
	Decimal:    "decimal",
	Serial:     "serial",
	Date:       "date",
	Money:      "money",
	NullType:   "null",
	DateTime:   "datetime",
	Bytes:      "byte",
	Text:       "text",
	VarChar:    "varchar",
	Interval:   "interval",
	NChar:      "nchar",
	NVarChar:   "nvarchar",
	Int8:       "int8",
	Serial8:    "serial8",
	LVarChar:   "lvarchar",
	Boolean:    "boolean",
	BigInt:     "bigint",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// IsInteger reports whether the tag names a fixed-width integer type.
func (t Type) IsInteger() bool {
	switch t {
	case SmallInt, Integer, Serial, Int8, Serial8, BigInt:
		return true
	default:
		return false
	}
}

// IntegerBits returns the declared width of a fixed-width integer tag.
func (t Type) IntegerBits() int {
	switch t {
	case SmallInt:
		return 16
	case Integer, Serial:
		return 32
	case Int8, Serial8, BigInt:
		return 64
	default:
		return 0
	}
}

// IsCharacter reports whether the tag names an inline character type.
func (t Type) IsCharacter() bool {
	switch t {
	case Char, VarChar, NChar, NVarChar, LVarChar:
		return true
	default:
		return false
	}
}

// IsMultiByte reports whether the tag carries locale-dependent multibyte
// text, measured in runes rather than bytes.
func (t Type) IsMultiByte() bool {
	return t == NChar || t == NVarChar
}

// IsLargeObject reports whether values of this tag live in remote large
// object storage rather than inline in the row.
func (t Type) IsLargeObject() bool {
	return t == Bytes || t == Text
}
