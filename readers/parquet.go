package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/songlake/core"
)

// ParquetReaderError provides structured error information for parquet reader operations
type ParquetReaderError struct {
	Path string
	Op   string // open, schema, read or decode
	Err  error
}

func (e *ParquetReaderError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("parquet reader %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetReader reads one data file written by the partitioned writer back
// into records. Values come back as the types the pipeline produces: string,
// int32, int64, float64 and UTC time.Time.
type ParquetReader struct {
	path     string
	handle   *os.File
	numRows  int64
	columns  []core.Column
	records  pqarrow.RecordReader
	batch    arrow.Record
	batchRow int
}

// ParquetReaderOption configures a ParquetReader
type ParquetReaderOption func(*parquetReaderOptions)

type parquetReaderOptions struct {
	batchSize int64
}

// WithReadBatchSize sets the number of rows decoded per Arrow batch
func WithReadBatchSize(size int64) ParquetReaderOption {
	return func(o *parquetReaderOptions) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// NewParquetReader opens path and maps its Arrow schema to table columns.
// Files holding column types the writer never produces are rejected.
func NewParquetReader(path string, opts ...ParquetReaderOption) (*ParquetReader, error) {
	o := parquetReaderOptions{batchSize: 1024}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ParquetReaderError{Path: path, Op: "open", Err: err}
	}
	fail := func(op string, err error) (*ParquetReader, error) {
		f.Close()
		return nil, &ParquetReaderError{Path: path, Op: op, Err: err}
	}

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return fail("open", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: o.batchSize}, memory.NewGoAllocator())
	if err != nil {
		return fail("open", err)
	}
	schema, err := fr.Schema()
	if err != nil {
		return fail("schema", err)
	}
	columns, err := tableColumns(schema)
	if err != nil {
		return fail("schema", err)
	}
	rr, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		return fail("open", err)
	}

	return &ParquetReader{
		path:    path,
		handle:  f,
		numRows: pf.NumRows(),
		columns: columns,
		records: rr,
	}, nil
}

// tableColumns is the inverse of the writer's Arrow schema mapping.
func tableColumns(schema *arrow.Schema) ([]core.Column, error) {
	columns := make([]core.Column, 0, len(schema.Fields()))
	for _, field := range schema.Fields() {
		var t core.ColumnType
		switch field.Type.ID() {
		case arrow.STRING:
			t = core.TypeString
		case arrow.INT32:
			t = core.TypeInt32
		case arrow.INT64:
			t = core.TypeInt64
		case arrow.FLOAT64:
			t = core.TypeFloat64
		case arrow.TIMESTAMP:
			t = core.TypeTimestamp
		default:
			return nil, fmt.Errorf("column %s has unsupported type %s", field.Name, field.Type)
		}
		columns = append(columns, core.Column{Name: field.Name, Type: t})
	}
	return columns, nil
}

// Columns returns the data columns stored in the file. Partition columns live
// in the directory path, not the file.
func (p *ParquetReader) Columns() []core.Column {
	return p.columns
}

// NumRows returns the row count recorded in the file footer
func (p *ParquetReader) NumRows() int64 {
	return p.numRows
}

// Read implements the DataSource interface
func (p *ParquetReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ParquetReaderError{Path: p.path, Op: "read", Err: err}
	}

	for p.batch == nil || p.batchRow >= int(p.batch.NumRows()) {
		if err := p.nextBatch(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, &ParquetReaderError{Path: p.path, Op: "read", Err: err}
		}
	}

	record := make(core.Record, len(p.columns))
	for i, col := range p.columns {
		v, err := columnValue(p.batch.Column(i), p.batchRow)
		if err != nil {
			return nil, &ParquetReaderError{Path: p.path, Op: "decode", Err: fmt.Errorf("column %s: %w", col.Name, err)}
		}
		record[col.Name] = v
	}
	p.batchRow++
	return record, nil
}

func (p *ParquetReader) nextBatch() error {
	if p.batch != nil {
		p.batch.Release()
		p.batch = nil
	}
	rec, err := p.records.Read()
	if err != nil {
		return err
	}
	if rec == nil {
		return io.EOF
	}
	// The record reader owns rec until the next Read.
	rec.Retain()
	p.batch = rec
	p.batchRow = 0
	return nil
}

func columnValue(col arrow.Array, row int) (interface{}, error) {
	if col.IsNull(row) {
		return nil, nil
	}
	switch arr := col.(type) {
	case *array.String:
		return arr.Value(row), nil
	case *array.Int32:
		return arr.Value(row), nil
	case *array.Int64:
		return arr.Value(row), nil
	case *array.Float64:
		return arr.Value(row), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(row).ToTime(unit).In(time.UTC), nil
	default:
		return nil, fmt.Errorf("unsupported array %T", col)
	}
}

// Close releases the current batch and closes the file
func (p *ParquetReader) Close() error {
	if p.batch != nil {
		p.batch.Release()
		p.batch = nil
	}
	if p.records != nil {
		p.records.Release()
		p.records = nil
	}
	if p.handle == nil {
		return nil
	}
	err := p.handle.Close()
	p.handle = nil
	return err
}
