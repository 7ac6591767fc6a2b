package ebase

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Magic bytes at the start of every EBase file: "EBDBF\0".
var magic = []byte{0x45, 0x42, 0x44, 0x42, 0x46, 0x00}

const (
	headerSize = 0x34

	// Directory and schema entries are fixed width; both follow the header
	// back to back, one schema block per table.
	dirEntrySize    = 22
	schemaEntrySize = 13
)

// Header is the fixed 52-byte EBase file header.
type Header struct {
	HeaderVersion  uint16
	Major          uint16
	Minor          uint16
	StringPoolOff  uint32
	StringDataSize uint32
	TableCount     uint32
}

// ColumnSchema describes one column of a table: its name, on-disk type and
// byte offset inside each fixed-width record. InlineLen is only meaningful
// for inline_string columns.
type ColumnSchema struct {
	Name      string
	Type      ColumnType
	Offset    int
	InlineLen int
}

// TableInfo describes one table in the directory.
type TableInfo struct {
	Name          string
	Columns       []ColumnSchema
	RecordSize    int
	RecordCount   int
	RecordsOffset int64

	file *File
}

// Warning reports a recoverable decode problem. Fatal structural problems
// are returned as *FormatError instead.
type Warning struct {
	Code    string
	Message string
}

// File is a fully opened EBase file: header, table directory, column schemas
// and the raw bytes. The struct is read-only after Open and safe for
// concurrent use.
type File struct {
	Path   string
	Header Header

	data   []byte
	pool   []byte // string pool slice of data
	tables map[string]*TableInfo
	order  []string
}

// Open reads and validates an EBase file. The whole file is pulled into
// memory; OCD data files are small (a few MB at most) and the loader decodes
// tables from disjoint slices in parallel.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open ebase: %w", err)
	}
	return Parse(path, data)
}

// Parse validates a raw EBase image. The path is only used in error messages.
func Parse(path string, data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, formatErr(path, 0, ErrTruncated, "file shorter than header (%d bytes)", len(data))
	}
	for i, b := range magic {
		if data[i] != b {
			return nil, formatErr(path, 0, ErrBadMagic, "bad magic % x", data[:len(magic)])
		}
	}

	h := Header{
		HeaderVersion:  binary.BigEndian.Uint16(data[0x06:]),
		Major:          binary.BigEndian.Uint16(data[0x08:]),
		Minor:          binary.BigEndian.Uint16(data[0x0A:]),
		StringPoolOff:  binary.BigEndian.Uint32(data[0x10:]),
		StringDataSize: binary.BigEndian.Uint32(data[0x24:]),
		TableCount:     binary.BigEndian.Uint32(data[0x28:]),
	}
	if h.Major != 1 {
		return nil, formatErr(path, 0x08, ErrUnsupportedVersion, "major version %d", h.Major)
	}
	if int64(h.StringPoolOff)+int64(h.StringDataSize) > int64(len(data)) {
		return nil, formatErr(path, 0x10, ErrTruncated,
			"string pool %d+%d exceeds file length %d", h.StringPoolOff, h.StringDataSize, len(data))
	}

	f := &File{
		Path:   path,
		Header: h,
		data:   data,
		pool:   data[h.StringPoolOff : int64(h.StringPoolOff)+int64(h.StringDataSize)],
		tables: make(map[string]*TableInfo, h.TableCount),
	}
	if err := f.readDirectory(); err != nil {
		return nil, err
	}
	return f, nil
}

// readDirectory parses the table directory and each table's column schemas.
func (f *File) readDirectory() error {
	dirEnd := int64(headerSize) + int64(f.Header.TableCount)*dirEntrySize
	if dirEnd > int64(len(f.data)) {
		return formatErr(f.Path, headerSize, ErrTruncated, "table directory exceeds file length")
	}

	for i := uint32(0); i < f.Header.TableCount; i++ {
		off := int64(headerSize) + int64(i)*dirEntrySize
		e := f.data[off : off+dirEntrySize]

		name, ok := f.poolString(binary.BigEndian.Uint32(e[0:]))
		if !ok || name == "" {
			return formatErr(f.Path, off, nil, "table %d: unreadable name", i)
		}
		t := &TableInfo{
			Name:          name,
			RecordSize:    int(binary.BigEndian.Uint32(e[10:])),
			RecordCount:   int(binary.BigEndian.Uint32(e[14:])),
			RecordsOffset: int64(binary.BigEndian.Uint32(e[18:])),
			file:          f,
		}
		colCount := int(binary.BigEndian.Uint16(e[4:]))
		schemaOff := int64(binary.BigEndian.Uint32(e[6:]))

		if schemaOff+int64(colCount)*schemaEntrySize > int64(len(f.data)) {
			return formatErr(f.Path, schemaOff, ErrTruncated, "table %q: schema block exceeds file length", name)
		}
		if t.RecordSize < 0 || t.RecordCount < 0 {
			return formatErr(f.Path, off, nil, "table %q: negative geometry", name)
		}
		if t.RecordSize == 0 && t.RecordCount > 0 {
			return formatErr(f.Path, off, nil, "table %q: zero record size with %d records", name, t.RecordCount)
		}
		if t.RecordsOffset+int64(t.RecordCount)*int64(t.RecordSize) > int64(len(f.data)) {
			return formatErr(f.Path, off, ErrTruncated, "table %q: record block exceeds file length", name)
		}

		prevEnd := 0
		for c := 0; c < colCount; c++ {
			so := schemaOff + int64(c)*schemaEntrySize
			s := f.data[so : so+schemaEntrySize]
			colName, ok := f.poolString(binary.BigEndian.Uint32(s[0:]))
			if !ok {
				return formatErr(f.Path, so, nil, "table %q: column %d: unreadable name", name, c)
			}
			col := ColumnSchema{
				Name:      colName,
				Type:      ColumnType(s[4]),
				Offset:    int(binary.BigEndian.Uint32(s[5:])),
				InlineLen: int(binary.BigEndian.Uint32(s[9:])),
			}
			width := col.Type.Size(col.InlineLen)
			if width <= 0 {
				return formatErr(f.Path, so, nil, "table %q: column %q: unknown type %d", name, colName, s[4])
			}
			// Offsets must increase and stay inside the record.
			if col.Offset < prevEnd || col.Offset+width > t.RecordSize {
				return formatErr(f.Path, so, nil,
					"table %q: column %q: offset %d out of range for record size %d",
					name, colName, col.Offset, t.RecordSize)
			}
			prevEnd = col.Offset + width
			t.Columns = append(t.Columns, col)
		}

		if _, dup := f.tables[name]; !dup {
			f.tables[name] = t
			f.order = append(f.order, name)
		}
	}
	return nil
}

// Table returns the named table, or false when the directory has no entry
// for it. Missing tables are normal in OCD data sets.
func (f *File) Table(name string) (*TableInfo, bool) {
	t, ok := f.tables[name]
	return t, ok
}

// TableNames returns the table names in directory order.
func (f *File) TableNames() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// poolString resolves a string_ref offset against the pool. Offset 0 is the
// empty string by convention. The boolean is false when the reference points
// outside the pool.
func (f *File) poolString(off uint32) (string, bool) {
	if off == 0 {
		return "", true
	}
	if int64(off)+2 > int64(len(f.pool)) {
		return "", false
	}
	n := int(binary.BigEndian.Uint16(f.pool[off:]))
	if int64(off)+2+int64(n) > int64(len(f.pool)) {
		return "", false
	}
	return decodeText(f.pool[off+2 : int(off)+2+n]), true
}

// decodeText decodes string bytes as UTF-8, falling back to Latin-1 for the
// manufacturer files that still ship legacy encodings. It never fails.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return strings.TrimRight(string(b), " ")
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO 8859-1 decodes any byte; keep the raw bytes if it ever fails.
		return strings.TrimRight(string(b), " ")
	}
	return strings.TrimRight(string(s), " ")
}
