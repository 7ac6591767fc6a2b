// Package ebasetest builds synthetic EBase images for tests. The writer
// mirrors the layout the reader expects: 52-byte header, table directory,
// per-table schema blocks, record blocks, string pool at the end.
package ebasetest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ebase"
)

// Column declares one column of a fixture table.
type Column struct {
	Name      string
	Type      ebase.ColumnType
	InlineLen int
}

// Table declares one fixture table with its rows. Row values are given in
// column order; strings feed inline_string and string_ref columns, numbers
// feed the numeric ones.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Builder accumulates tables and renders an EBase image.
type Builder struct {
	Tables []Table

	pool      bytes.Buffer
	poolIndex map[string]uint32

	// RawPatch, when set, is applied to the finished image. Tests use it to
	// inject corruption at known offsets.
	RawPatch func(img []byte)
}

// New returns an empty builder.
func New() *Builder {
	b := &Builder{poolIndex: make(map[string]uint32)}
	// Offset 0 denotes the empty string, so the pool starts with a pad byte.
	b.pool.WriteByte(0)
	return b
}

// AddTable appends a table to the image.
func (b *Builder) AddTable(t Table) *Builder {
	b.Tables = append(b.Tables, t)
	return b
}

// intern writes a string into the pool and returns its ref offset.
func (b *Builder) intern(s string) uint32 {
	if s == "" {
		return 0
	}
	if off, ok := b.poolIndex[s]; ok {
		return off
	}
	off := uint32(b.pool.Len())
	var lp [2]byte
	binary.BigEndian.PutUint16(lp[:], uint16(len(s)))
	b.pool.Write(lp[:])
	b.pool.WriteString(s)
	b.poolIndex[s] = off
	return off
}

type tableLayout struct {
	nameRef       uint32
	schemaOffset  uint32
	recordsOffset uint32
	recordSize    int
	colOffsets    []int
}

// Build renders the image.
func (b *Builder) Build() []byte {
	const headerSize = 0x34
	const dirEntrySize = 22
	const schemaEntrySize = 13

	layouts := make([]tableLayout, len(b.Tables))

	// Pass 1: pool strings for names and string_ref cells, record geometry.
	cursor := headerSize + dirEntrySize*len(b.Tables)
	for i, t := range b.Tables {
		layouts[i].nameRef = b.intern(t.Name)
		layouts[i].schemaOffset = uint32(cursor)
		cursor += schemaEntrySize * len(t.Columns)

		off := 0
		for _, c := range t.Columns {
			b.intern(c.Name)
			layouts[i].colOffsets = append(layouts[i].colOffsets, off)
			off += c.Type.Size(c.InlineLen)
		}
		layouts[i].recordSize = off
	}
	for i, t := range b.Tables {
		layouts[i].recordsOffset = uint32(cursor)
		cursor += layouts[i].recordSize * len(t.Rows)
		for _, row := range t.Rows {
			for ci, c := range t.Columns {
				if c.Type == ebase.TypeStringRef {
					if s, ok := row[ci].(string); ok {
						b.intern(s)
					}
				}
			}
		}
	}
	poolOffset := cursor

	img := make([]byte, poolOffset+b.pool.Len())

	// Header.
	copy(img, []byte{0x45, 0x42, 0x44, 0x42, 0x46, 0x00})
	binary.BigEndian.PutUint16(img[0x06:], 1) // header version
	binary.BigEndian.PutUint16(img[0x08:], 1) // major
	binary.BigEndian.PutUint16(img[0x0A:], 0) // minor
	binary.BigEndian.PutUint32(img[0x10:], uint32(poolOffset))
	binary.BigEndian.PutUint32(img[0x24:], uint32(b.pool.Len()))
	binary.BigEndian.PutUint32(img[0x28:], uint32(len(b.Tables)))

	// Directory + schemas + records.
	for i, t := range b.Tables {
		l := layouts[i]
		d := img[headerSize+dirEntrySize*i:]
		binary.BigEndian.PutUint32(d[0:], l.nameRef)
		binary.BigEndian.PutUint16(d[4:], uint16(len(t.Columns)))
		binary.BigEndian.PutUint32(d[6:], l.schemaOffset)
		binary.BigEndian.PutUint32(d[10:], uint32(l.recordSize))
		binary.BigEndian.PutUint32(d[14:], uint32(len(t.Rows)))
		binary.BigEndian.PutUint32(d[18:], l.recordsOffset)

		for ci, c := range t.Columns {
			s := img[int(l.schemaOffset)+schemaEntrySize*ci:]
			binary.BigEndian.PutUint32(s[0:], b.poolIndex[c.Name])
			s[4] = byte(c.Type)
			binary.BigEndian.PutUint32(s[5:], uint32(l.colOffsets[ci]))
			binary.BigEndian.PutUint32(s[9:], uint32(c.InlineLen))
		}

		for ri, row := range t.Rows {
			rec := img[int(l.recordsOffset)+l.recordSize*ri:]
			for ci, c := range t.Columns {
				writeCell(rec[l.colOffsets[ci]:], c, row[ci], b.poolIndex)
			}
		}
	}

	copy(img[poolOffset:], b.pool.Bytes())

	if b.RawPatch != nil {
		b.RawPatch(img)
	}
	return img
}

func writeCell(dst []byte, c Column, v any, pool map[string]uint32) {
	switch c.Type {
	case ebase.TypeInt8, ebase.TypeUint8:
		dst[0] = byte(asInt(v))
	case ebase.TypeInt16, ebase.TypeUint16:
		binary.BigEndian.PutUint16(dst, uint16(asInt(v)))
	case ebase.TypeInt32, ebase.TypeUint32:
		binary.BigEndian.PutUint32(dst, uint32(asInt(v)))
	case ebase.TypeFloat32:
		binary.BigEndian.PutUint32(dst, math.Float32bits(float32(asFloat(v))))
	case ebase.TypeFloat64:
		binary.BigEndian.PutUint64(dst, math.Float64bits(asFloat(v)))
	case ebase.TypeInlineString:
		s, _ := v.(string)
		for i := 0; i < c.InlineLen; i++ {
			if i < len(s) {
				dst[i] = s[i]
			} else {
				dst[i] = ' '
			}
		}
	case ebase.TypeStringRef:
		s, _ := v.(string)
		binary.BigEndian.PutUint32(dst, pool[s])
	case ebase.TypeBlobRef:
		binary.BigEndian.PutUint32(dst, uint32(asInt(v)))
	}
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
