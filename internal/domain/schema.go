package domain

import "fmt"

// TypeKind is the semantic kind of a column.
type TypeKind string

// TypeKind values.
const (
	KindText    TypeKind = "text"
	KindDecimal TypeKind = "decimal"
)

// MaxDecimalPrecision is the widest fixed-point decimal a column may declare.
const MaxDecimalPrecision = 38

// ColumnType is a semantic column type. Precision and Scale apply to decimals only.
type ColumnType struct {
	Kind      TypeKind
	Precision int32
	Scale     int32
}

// Text returns the nullable UTF-8 string type.
func Text() ColumnType { return ColumnType{Kind: KindText} }

// Decimal returns a fixed-point decimal type with the given total and fraction digits.
func Decimal(precision, scale int32) ColumnType {
	return ColumnType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// String renders the type using the syntax accepted by the schema loader.
func (t ColumnType) String() string {
	if t.Kind == KindDecimal {
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	}
	return string(t.Kind)
}

// Validate checks that the type is supported.
func (t ColumnType) Validate() error {
	switch t.Kind {
	case KindText:
		return nil
	case KindDecimal:
		if t.Precision < 1 || t.Precision > MaxDecimalPrecision {
			return fmt.Errorf("decimal precision %d out of range 1..%d", t.Precision, MaxDecimalPrecision)
		}
		if t.Scale < 0 || t.Scale > t.Precision {
			return fmt.Errorf("decimal scale %d out of range 0..%d", t.Scale, t.Precision)
		}
		return nil
	default:
		return fmt.Errorf("unsupported column kind %q", t.Kind)
	}
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column list of a category. Column order matches the
// field order of the headerless source file.
type Schema struct {
	Category string
	Columns  []Column
}

// Width returns the number of columns.
func (s Schema) Width() int { return len(s.Columns) }

// ColumnNames returns the column names in order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks column names are present and unique and every type is supported.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %q has no columns", s.Category)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema %q: column %d has no name", s.Category, i+1)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("schema %q: duplicate column %q", s.Category, c.Name)
		}
		seen[c.Name] = struct{}{}
		if err := c.Type.Validate(); err != nil {
			return fmt.Errorf("schema %q column %s: %w", s.Category, c.Name, err)
		}
	}
	return nil
}
