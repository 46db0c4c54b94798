package ifxtype

import "fmt"

const (
	// IdentMaxLen is the longest identifier the remote engine accepts.
	IdentMaxLen = 128

	// ConnNameLen bounds a connection name built from server and user
	// identifiers.
	ConnNameLen = 2 * IdentMaxLen
)

// ColumnDescriptor describes one column of a remote table or cursor
// result: its wire type tag, declared size metadata and nullability.
type ColumnDescriptor struct {
	Name      string
	Type      Type
	Length    int
	Precision int
	Scale     int
	Qualifier IntervalQualifier
	NotNull   bool
}

// Validate rejects descriptors whose metadata is inconsistent with the
// declared type tag.
func (cd ColumnDescriptor) Validate() error {
	if len(cd.Name) > IdentMaxLen {
		return fmt.Errorf("column name %q exceeds %d bytes", cd.Name, IdentMaxLen)
	}
	switch cd.Type {
	case Decimal, Money:
		if cd.Precision <= 0 {
			return fmt.Errorf("column %q: %s requires a declared precision", cd.Name, cd.Type)
		}
		if cd.Scale < 0 || cd.Scale > cd.Precision {
			return fmt.Errorf("column %q: scale %d out of range for precision %d", cd.Name, cd.Scale, cd.Precision)
		}
	case Interval:
		if err := cd.Qualifier.Validate(); err != nil {
			return fmt.Errorf("column %q: %w", cd.Name, err)
		}
	case Char, VarChar, NChar, NVarChar, LVarChar:
		if cd.Length <= 0 {
			return fmt.Errorf("column %q: %s requires a declared length", cd.Name, cd.Type)
		}
	}
	return nil
}

// Locale carries the encoding and format qualifiers applied to every
// marshalling call. The bridge never consults process-wide locale state;
// callers pass the table's locale explicitly.
type Locale struct {
	ClientLocale string
	DBLocale     string

	// DateFormat and DateTimeFormat are Go reference layouts standing in
	// for the remote engine's GL_DATE / GL_DATETIME format qualifiers.
	DateFormat     string
	DateTimeFormat string
}

// DefaultLocale is the ISO-8601 locale used when a binding declares none.
var DefaultLocale = Locale{
	ClientLocale:   "en_US.utf8",
	DBLocale:       "en_US.utf8",
	DateFormat:     "2006-01-02",
	DateTimeFormat: "2006-01-02 15:04:05",
}

// WithDefaults fills unset fields from DefaultLocale.
func (l Locale) WithDefaults() Locale {
	if l.ClientLocale == "" {
		l.ClientLocale = DefaultLocale.ClientLocale
	}
	if l.DBLocale == "" {
		l.DBLocale = DefaultLocale.DBLocale
	}
	if l.DateFormat == "" {
		l.DateFormat = DefaultLocale.DateFormat
	}
	if l.DateTimeFormat == "" {
		l.DateTimeFormat = DefaultLocale.DateTimeFormat
	}
	return l
}

// Datum is the wire form of one column value as exchanged with the remote
// session: numerics, temporal values and intervals travel in their
// character representation, byte types in Raw.
type Datum struct {
	Null bool
	Tag  Type
	Text string
	Raw  []byte
}

// NullDatum returns a NULL datum carrying the given tag.
func NullDatum(tag Type) Datum { return Datum{Null: true, Tag: tag} }

// TextDatum returns a datum in character representation.
func TextDatum(tag Type, text string) Datum { return Datum{Tag: tag, Text: text} }

// RawDatum returns a byte-payload datum.
func RawDatum(tag Type, raw []byte) Datum { return Datum{Tag: tag, Raw: raw} }

func (d Datum) String() string {
	if d.Null {
		return "NULL::" + d.Tag.String()
	}
	if d.Tag.IsLargeObject() {
		return fmt.Sprintf("<%d bytes>::%s", len(d.Raw), d.Tag)
	}
	return fmt.Sprintf("%s::%s", d.Text, d.Tag)
}
