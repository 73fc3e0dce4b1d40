// Package verify re-reads written artifacts to confirm they match their schema.
package verify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"fec-lake/internal/domain"
)

// DuckDBVerifier opens Parquet artifacts through DuckDB's read_parquet and
// checks column names, column types and row count.
type DuckDBVerifier struct {
	db *sql.DB
}

var _ domain.ArtifactVerifier = (*DuckDBVerifier)(nil)

// NewDuckDBVerifier wraps an open DuckDB handle.
func NewDuckDBVerifier(db *sql.DB) *DuckDBVerifier {
	return &DuckDBVerifier{db: db}
}

// OpenInMemory opens a private in-memory DuckDB database for verification.
func OpenInMemory() (*DuckDBVerifier, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &DuckDBVerifier{db: db}, nil
}

// Close releases the underlying database handle.
func (v *DuckDBVerifier) Close() error {
	return v.db.Close()
}

// DuckDBType renders the DuckDB type a column is expected to read back as.
func DuckDBType(t domain.ColumnType) string {
	if t.Kind == domain.KindDecimal {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	}
	return "VARCHAR"
}

// Verify implements domain.ArtifactVerifier.
func (v *DuckDBVerifier) Verify(ctx context.Context, path string, s domain.Schema, wantRows int64) error {
	source := "read_parquet(" + quoteLiteral(path) + ")"

	cols, err := v.describe(ctx, source)
	if err != nil {
		return fmt.Errorf("describe %s: %w", path, err)
	}
	if len(cols) != s.Width() {
		return &domain.VerificationError{
			Path:    path,
			Message: fmt.Sprintf("has %d columns, schema %s has %d", len(cols), s.Category, s.Width()),
		}
	}
	for i, want := range s.Columns {
		got := cols[i]
		if got.name != want.Name {
			return &domain.VerificationError{
				Path:    path,
				Message: fmt.Sprintf("column %d is %q, want %q", i+1, got.name, want.Name),
			}
		}
		if wantType := DuckDBType(want.Type); !strings.EqualFold(got.typ, wantType) {
			return &domain.VerificationError{
				Path:    path,
				Message: fmt.Sprintf("column %s has type %s, want %s", want.Name, got.typ, wantType),
			}
		}
	}

	var rows int64
	if err := v.db.QueryRowContext(ctx, "SELECT count(*) FROM "+source).Scan(&rows); err != nil {
		return fmt.Errorf("count rows in %s: %w", path, err)
	}
	if rows != wantRows {
		return &domain.VerificationError{
			Path:    path,
			Message: fmt.Sprintf("has %d rows, want %d", rows, wantRows),
		}
	}
	return nil
}

type describedColumn struct {
	name string
	typ  string
}

// describe runs DESCRIBE and keeps the first two result columns
// (column_name, column_type).
func (v *DuckDBVerifier) describe(ctx context.Context, source string) ([]describedColumn, error) {
	rows, err := v.db.QueryContext(ctx, "DESCRIBE SELECT * FROM "+source)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("unexpected DESCRIBE result with %d columns", len(names))
	}

	vals := make([]sql.NullString, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var out []describedColumn
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, describedColumn{name: vals[0].String, typ: vals[1].String})
	}
	return out, rows.Err()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
