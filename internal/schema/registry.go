// Package schema holds the column layouts of every dataset category.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"fec-lake/internal/domain"
)

//go:embed schemas.yaml
var defaultSchemas []byte

// Registry maps category names to schemas. It is immutable after construction
// and safe for concurrent use.
type Registry struct {
	schemas map[string]domain.Schema
}

var _ domain.SchemaLookup = (*Registry)(nil)

// NewRegistry validates and indexes the given schemas. Later entries with the
// same category are rejected.
func NewRegistry(schemas ...domain.Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]domain.Schema, len(schemas))}
	for _, s := range schemas {
		if s.Category == "" {
			return nil, fmt.Errorf("schema without category")
		}
		if _, dup := r.schemas[s.Category]; dup {
			return nil, fmt.Errorf("duplicate schema for category %q", s.Category)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		cols := make([]domain.Column, len(s.Columns))
		copy(cols, s.Columns)
		r.schemas[s.Category] = domain.Schema{Category: s.Category, Columns: cols}
	}
	return r, nil
}

// Default returns the registry built from the embedded schema table.
func Default() (*Registry, error) {
	return Parse(defaultSchemas)
}

// LoadFile reads a YAML schema table from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return Parse(data)
}

type columnDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Parse decodes a YAML schema table: a mapping from category to a sequence of
// {name, type} entries in file column order.
func Parse(data []byte) (*Registry, error) {
	var doc map[string][]columnDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}

	categories := make([]string, 0, len(doc))
	for c := range doc {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	schemas := make([]domain.Schema, 0, len(doc))
	for _, category := range categories {
		s := domain.Schema{Category: category}
		for _, col := range doc[category] {
			t, err := ParseType(col.Type)
			if err != nil {
				return nil, fmt.Errorf("schema: %s.%s: %w", category, col.Name, err)
			}
			s.Columns = append(s.Columns, domain.Column{Name: col.Name, Type: t})
		}
		schemas = append(schemas, s)
	}
	return NewRegistry(schemas...)
}

// Lookup returns the schema of category, or *domain.UnknownCategoryError.
func (r *Registry) Lookup(category string) (domain.Schema, error) {
	s, ok := r.schemas[category]
	if !ok {
		return domain.Schema{}, &domain.UnknownCategoryError{Category: category}
	}
	cols := make([]domain.Column, len(s.Columns))
	copy(cols, s.Columns)
	return domain.Schema{Category: s.Category, Columns: cols}, nil
}

// Categories returns the registered category names, sorted.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.schemas))
	for c := range r.schemas {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ParseType parses "text" (aliases "utf8", "string") or "decimal(P,S)".
func ParseType(s string) (domain.ColumnType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "text", "utf8", "string":
		return domain.Text(), nil
	}

	inner, ok := strings.CutPrefix(v, "decimal(")
	if !ok {
		return domain.ColumnType{}, fmt.Errorf("unsupported type %q", s)
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return domain.ColumnType{}, fmt.Errorf("malformed decimal type %q", s)
	}
	ps, ss, ok := strings.Cut(inner, ",")
	if !ok {
		return domain.ColumnType{}, fmt.Errorf("decimal type %q needs precision and scale", s)
	}
	precision, err := strconv.ParseInt(strings.TrimSpace(ps), 10, 32)
	if err != nil {
		return domain.ColumnType{}, fmt.Errorf("decimal precision in %q: %w", s, err)
	}
	scale, err := strconv.ParseInt(strings.TrimSpace(ss), 10, 32)
	if err != nil {
		return domain.ColumnType{}, fmt.Errorf("decimal scale in %q: %w", s, err)
	}

	t := domain.Decimal(int32(precision), int32(scale))
	if err := t.Validate(); err != nil {
		return domain.ColumnType{}, err
	}
	return t, nil
}
