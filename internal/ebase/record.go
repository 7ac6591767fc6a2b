package ebase

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Record is one decoded row: column name to value. Columns that were not
// requested are absent from the map.
type Record map[string]Value

// Str returns the named column as a string, or "" when absent.
func (r Record) Str(name string) string {
	return r[name].Str()
}

// Float returns the named column as a float64, or 0 when absent.
func (r Record) Float(name string) float64 {
	return r[name].Float()
}

// Int returns the named column as an int64, or 0 when absent.
func (r Record) Int(name string) int64 {
	return r[name].Int()
}

// RecordIterator walks the fixed-width record block of one table lazily.
// A record that fails to decode is skipped with a warning; iteration always
// terminates after RecordCount rows.
type RecordIterator struct {
	table   *TableInfo
	columns []ColumnSchema
	index   int

	warnings []Warning
}

// Records returns an iterator over the table. When column names are given,
// only those columns are decoded; unknown names are ignored so that callers
// can probe for optional columns.
func (t *TableInfo) Records(columns ...string) *RecordIterator {
	cols := t.Columns
	if len(columns) > 0 {
		want := make(map[string]bool, len(columns))
		for _, c := range columns {
			want[c] = true
		}
		cols = nil
		for _, c := range t.Columns {
			if want[c.Name] {
				cols = append(cols, c)
			}
		}
	}
	return &RecordIterator{table: t, columns: cols}
}

// Next decodes the next record. It returns nil when the table is exhausted.
func (it *RecordIterator) Next() Record {
	for it.index < it.table.RecordCount {
		i := it.index
		it.index++

		rec, err := it.decode(i)
		if err != nil {
			it.warnings = append(it.warnings, Warning{
				Code:    "RECORD_DECODE_FAILED",
				Message: fmt.Sprintf("table %q: record %d: %v", it.table.Name, i, err),
			})
			continue
		}
		return rec
	}
	return nil
}

// Warnings returns the decode warnings accumulated so far. Callers drain it
// after iteration.
func (it *RecordIterator) Warnings() []Warning {
	return it.warnings
}

func (it *RecordIterator) decode(i int) (Record, error) {
	t := it.table
	f := t.file
	start := t.RecordsOffset + int64(i)*int64(t.RecordSize)
	end := start + int64(t.RecordSize)
	if start < 0 || end > int64(len(f.data)) {
		return nil, fmt.Errorf("record outside file bounds")
	}
	raw := f.data[start:end]

	rec := make(Record, len(it.columns))
	for _, col := range it.columns {
		v, warn, err := decodeColumn(f, raw, col)
		if err != nil {
			return nil, err
		}
		if warn != nil {
			it.warnings = append(it.warnings, *warn)
		}
		rec[col.Name] = v
	}
	return rec, nil
}

// decodeColumn decodes a single column from a raw record slice. Out-of-range
// string references degrade to the empty string with a warning; they are the
// most common corruption in field data and must not kill the row.
func decodeColumn(f *File, raw []byte, col ColumnSchema) (Value, *Warning, error) {
	b := raw[col.Offset:]
	switch col.Type {
	case TypeInt8:
		return IntValue(int64(int8(b[0]))), nil, nil
	case TypeUint8:
		return IntValue(int64(b[0])), nil, nil
	case TypeInt16:
		return IntValue(int64(int16(binary.BigEndian.Uint16(b)))), nil, nil
	case TypeUint16:
		return IntValue(int64(binary.BigEndian.Uint16(b))), nil, nil
	case TypeInt32:
		return IntValue(int64(int32(binary.BigEndian.Uint32(b)))), nil, nil
	case TypeUint32:
		return IntValue(int64(binary.BigEndian.Uint32(b))), nil, nil
	case TypeFloat32:
		return FloatValue(float64(math.Float32frombits(binary.BigEndian.Uint32(b)))), nil, nil
	case TypeFloat64:
		return FloatValue(math.Float64frombits(binary.BigEndian.Uint64(b))), nil, nil
	case TypeInlineString:
		s := decodeText(b[:col.InlineLen])
		return StringValue(strings.TrimRight(s, " ")), nil, nil
	case TypeStringRef:
		off := binary.BigEndian.Uint32(b)
		s, ok := f.poolString(off)
		if !ok {
			w := &Warning{
				Code:    "STRING_REF_OUT_OF_RANGE",
				Message: fmt.Sprintf("column %q: string ref %d outside pool", col.Name, off),
			}
			return StringValue(""), w, nil
		}
		return StringValue(s), nil, nil
	case TypeBlobRef:
		return RefValue(binary.BigEndian.Uint32(b)), nil, nil
	default:
		return Value{}, nil, fmt.Errorf("column %q: undecodable type %d", col.Name, col.Type)
	}
}
