// Package convert turns headerless pipe-delimited extracts into Parquet files.
package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"fec-lake/internal/domain"
)

const (
	// Delimiter separates fields. It is never quoted or escaped.
	Delimiter = "|"

	// DefaultBatchSize is the number of rows buffered per Parquet write.
	DefaultBatchSize = 64 * 1024

	// CategoryMetadataKey names the schema metadata entry holding the category.
	CategoryMetadataKey = "fec.category"

	maxLineBytes = 64 << 20
)

// Result describes a finished conversion.
type Result struct {
	Rows   int64
	Output string
}

// Option configures a Converter.
type Option func(*Converter)

// WithBatchSize sets the number of rows per written record batch.
func WithBatchSize(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithAllocator sets the Arrow memory allocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(c *Converter) { c.mem = mem }
}

// Converter coerces text tables to a schema and writes them as Parquet.
type Converter struct {
	mem       memory.Allocator
	batchSize int
	logger    *slog.Logger
}

// NewConverter creates a Converter.
func NewConverter(logger *slog.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Converter{
		mem:       memory.DefaultAllocator,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ArrowSchema maps a schema onto Arrow fields. Every column is nullable.
func ArrowSchema(s domain.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: true}
	}
	md := arrow.NewMetadata([]string{CategoryMetadataKey}, []string{s.Category})
	return arrow.NewSchema(fields, &md)
}

func arrowType(t domain.ColumnType) arrow.DataType {
	if t.Kind == domain.KindDecimal {
		return &arrow.Decimal128Type{Precision: t.Precision, Scale: t.Scale}
	}
	return arrow.BinaryTypes.String
}

// Convert reads inputPath as a headerless '|'-delimited table, coerces every
// field to its column type in s, and writes a Parquet file to outputPath.
//
// Rows with too many fields are truncated and rows with too few are padded
// with nulls. Empty fields are null. The output appears at outputPath only
// when the whole file converted; failures wrap *domain.ConversionError.
func (c *Converter) Convert(ctx context.Context, inputPath string, s domain.Schema, outputPath string) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, &domain.ConversionError{File: inputPath, Err: err}
	}

	in, err := os.Open(inputPath) //nolint:gosec // extracted into a private temp dir
	if err != nil {
		return Result{}, &domain.ConversionError{File: inputPath, Err: err}
	}
	defer in.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, &domain.ConversionError{File: outputPath, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".tmp-*")
	if err != nil {
		return Result{}, &domain.ConversionError{File: outputPath, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	rows, err := c.write(ctx, in, inputPath, s, tmp)
	if err != nil {
		return Result{}, err
	}
	// The Parquet writer closes its sink; a second close is harmless.
	_ = tmp.Close()

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return Result{}, &domain.ConversionError{File: outputPath, Err: err}
	}
	committed = true

	c.logger.Debug("wrote artifact", "input", inputPath, "output", outputPath, "rows", rows)
	return Result{Rows: rows, Output: outputPath}, nil
}

func (c *Converter) write(ctx context.Context, r io.Reader, inputPath string, s domain.Schema, sink io.Writer) (int64, error) {
	schema := ArrowSchema(s)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(c.mem),
	)
	fw, err := pqarrow.NewFileWriter(schema, sink, props,
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema(), pqarrow.WithAllocator(c.mem)))
	if err != nil {
		return 0, &domain.ConversionError{File: inputPath, Err: fmt.Errorf("open parquet writer: %w", err)}
	}

	rb := array.NewRecordBuilder(c.mem, schema)
	defer rb.Release()
	cols := newColumnAppenders(rb, s)

	flush := func() error {
		rec := rb.NewRecord()
		defer rec.Release()
		if rec.NumRows() == 0 {
			return nil
		}
		return fw.Write(rec)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLineBytes)

	var (
		line     int64
		rows     int64
		buffered int
		convErr  error
	)
	width := s.Width()
	fields := make([]string, width)

	for scanner.Scan() {
		line++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		splitInto(fields, text)
		for i, col := range cols {
			if err := col.append(fields[i]); err != nil {
				convErr = &domain.ConversionError{
					File:   inputPath,
					Column: s.Columns[i].Name,
					Err: &domain.TypeCoercionError{
						Column: s.Columns[i].Name,
						Row:    line,
						Value:  fields[i],
						Type:   s.Columns[i].Type.String(),
						Err:    err,
					},
				}
				break
			}
		}
		if convErr != nil {
			break
		}

		rows++
		buffered++
		if buffered >= c.batchSize {
			if err := ctx.Err(); err != nil {
				convErr = &domain.ConversionError{File: inputPath, Err: err}
				break
			}
			if err := flush(); err != nil {
				convErr = &domain.ConversionError{File: inputPath, Err: fmt.Errorf("write batch: %w", err)}
				break
			}
			buffered = 0
		}
	}
	if convErr == nil {
		if err := scanner.Err(); err != nil {
			convErr = &domain.ConversionError{File: inputPath, Err: fmt.Errorf("read line %d: %w", line+1, err)}
		}
	}
	if convErr == nil && buffered > 0 {
		if err := flush(); err != nil {
			convErr = &domain.ConversionError{File: inputPath, Err: fmt.Errorf("write batch: %w", err)}
		}
	}

	closeErr := fw.Close()
	if convErr != nil {
		return 0, convErr
	}
	if closeErr != nil {
		return 0, &domain.ConversionError{File: inputPath, Err: fmt.Errorf("close parquet writer: %w", closeErr)}
	}
	return rows, nil
}

// splitInto splits line on the delimiter into exactly len(dst) fields,
// dropping extra fields and blanking missing ones.
func splitInto(dst []string, line string) {
	parts := strings.SplitN(line, Delimiter, len(dst)+1)
	for i := range dst {
		if i < len(parts) {
			dst[i] = parts[i]
		} else {
			dst[i] = ""
		}
	}
}

type columnAppender interface {
	append(field string) error
}

func newColumnAppenders(rb *array.RecordBuilder, s domain.Schema) []columnAppender {
	out := make([]columnAppender, len(s.Columns))
	for i, c := range s.Columns {
		switch c.Type.Kind {
		case domain.KindDecimal:
			out[i] = &decimalAppender{b: rb.Field(i).(*array.Decimal128Builder), t: c.Type}
		default:
			out[i] = &textAppender{b: rb.Field(i).(*array.StringBuilder), dec: charmap.Windows1252.NewDecoder()}
		}
	}
	return out
}

// textAppender keeps fields as UTF-8. Fields that are not valid UTF-8 are
// decoded as Windows-1252, the encoding of older bulk extracts.
type textAppender struct {
	b   *array.StringBuilder
	dec *encoding.Decoder
}

func (a *textAppender) append(field string) error {
	if field == "" {
		a.b.AppendNull()
		return nil
	}
	if !utf8.ValidString(field) {
		decoded, err := a.dec.String(field)
		if err != nil {
			return errors.New("invalid text encoding")
		}
		field = decoded
	}
	a.b.Append(field)
	return nil
}

type decimalAppender struct {
	b *array.Decimal128Builder
	t domain.ColumnType
}

func (a *decimalAppender) append(field string) error {
	if strings.TrimSpace(field) == "" {
		a.b.AppendNull()
		return nil
	}
	n, err := ParseDecimal(field, a.t.Precision, a.t.Scale)
	if err != nil {
		return err
	}
	a.b.Append(n)
	return nil
}
