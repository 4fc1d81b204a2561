// Package format defines the on-disk wire structures of a cstable file:
// the magic number, the two binary format versions, column configuration,
// the page index, and the metablock that commits a file.
//
// Everything in this package is a plain value type with explicit
// little-endian encode/decode functions; none of it depends on the rest of
// the module so it can be imported by both the writer and reader paths
// without creating cycles.
package format

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the 4-byte sequence that opens every cstable file.
var Magic = [4]byte{0x23, 0x17, 0x23, 0x17}

// BinaryFormatVersion identifies the on-disk layout of a file.
type BinaryFormatVersion struct {
	Major uint16
	Minor uint16
}

func (v BinaryFormatVersion) String() string {
	return fmt.Sprintf("v%d.%d.0", v.Major, v.Minor)
}

var (
	// VersionV1 is the legacy single-section layout: read-only.
	VersionV1 = BinaryFormatVersion{Major: 0, Minor: 1}
	// VersionV2 is the page-indexed layout: the only version this library writes.
	VersionV2 = BinaryFormatVersion{Major: 0, Minor: 2}
)

// LogicalType is the application-visible type of a column's values.
type LogicalType uint8

const (
	BOOLEAN LogicalType = iota + 1
	UNSIGNED_INT
	SIGNED_INT
	FLOAT
	STRING
	DATETIME
)

func (t LogicalType) String() string {
	switch t {
	case BOOLEAN:
		return "BOOLEAN"
	case UNSIGNED_INT:
		return "UNSIGNED_INT"
	case SIGNED_INT:
		return "SIGNED_INT"
	case FLOAT:
		return "FLOAT"
	case STRING:
		return "STRING"
	case DATETIME:
		return "DATETIME"
	default:
		return fmt.Sprintf("LogicalType(%d)", uint8(t))
	}
}

// StorageType is the on-disk encoding used for a column's value stream.
type StorageType uint8

const (
	BOOLEAN_BITPACKED StorageType = iota + 1
	UINT32_BITPACKED
	UINT32_PLAIN
	UINT64_PLAIN
	UINT64_LEB128
	FLOAT_IEEE754
	STRING_PLAIN
)

func (t StorageType) String() string {
	switch t {
	case BOOLEAN_BITPACKED:
		return "BOOLEAN_BITPACKED"
	case UINT32_BITPACKED:
		return "UINT32_BITPACKED"
	case UINT32_PLAIN:
		return "UINT32_PLAIN"
	case UINT64_PLAIN:
		return "UINT64_PLAIN"
	case UINT64_LEB128:
		return "UINT64_LEB128"
	case FLOAT_IEEE754:
		return "FLOAT_IEEE754"
	case STRING_PLAIN:
		return "STRING_PLAIN"
	default:
		return fmt.Sprintf("StorageType(%d)", uint8(t))
	}
}

// EntryType identifies which of a column's three logical page streams a
// PageIndexEntry belongs to.
type EntryType uint8

const (
	VALUES EntryType = iota
	RLEVEL
	DLEVEL
)

func (t EntryType) String() string {
	switch t {
	case VALUES:
		return "VALUES"
	case RLEVEL:
		return "RLEVEL"
	case DLEVEL:
		return "DLEVEL"
	default:
		return fmt.Sprintf("EntryType(%d)", uint8(t))
	}
}

// ColumnConfig describes one leaf column of a cstable file's schema.
//
// ValueBits is only meaningful when StorageType is UINT32_BITPACKED; it
// holds the bit width ("maxbits" in spec terms) that every value page for
// this column was packed with. The on-disk format does not otherwise carry
// a per-page bit width, so it has to live on the column configuration
// itself (see DESIGN.md, "ValueBits field").
type ColumnConfig struct {
	ColumnID    uint32
	Name        string
	LogicalType LogicalType
	StorageType StorageType
	RLevelMax   uint8
	DLevelMax   uint8
	ValueBits   uint8

	// V1 only: the column's body is a single contiguous run, located
	// directly by offset/size rather than through a page index.
	V1BodyOffset uint64
	V1BodySize   uint64
}

// PageIndexKey identifies one of a column's three logical page streams.
type PageIndexKey struct {
	ColumnID  uint32
	EntryType EntryType
}

// PageIndexEntry is one record of the V2 page index: the location of a
// single page, the stream it belongs to, and how many logical values (or
// levels) it holds.
type PageIndexEntry struct {
	Key    PageIndexKey
	Offset uint64
	Size   uint32
	Values uint32
}

// Metablock is the single atomic commit point of a V2 file.
type Metablock struct {
	TransactionID uint64
	NumRows       uint64
	IndexOffset   uint64
	IndexSize     uint64
	Checksum      [20]byte
}

// MetablockSize is the encoded byte length of a Metablock.
const MetablockSize = 8 + 8 + 8 + 8 + 20

// Header is the fixed-size preamble of a file, followed by the
// length-prefixed schema. MetablockAOffset/MetablockBOffset are only
// meaningful for VersionV2; VersionV1 carries its row count directly in
// V1NumRows instead, since it has no metablock.
type Header struct {
	Version          BinaryFormatVersion
	Flags            uint32
	MetablockAOffset uint64
	MetablockBOffset uint64
	V1NumRows        uint64
	Schema           []ColumnConfig
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// WriteColumnConfig serializes one ColumnConfig entry of the schema section.
func WriteColumnConfig(w io.Writer, c ColumnConfig) error {
	if err := writeUint32(w, c.ColumnID); err != nil {
		return err
	}
	name := []byte(c.Name)
	if err := writeUint32(w, uint32(len(name))); err != nil {
		return err
	}
	if _, err := w.Write(name); err != nil {
		return err
	}
	fields := []byte{byte(c.LogicalType), byte(c.StorageType), c.RLevelMax, c.DLevelMax, c.ValueBits}
	if _, err := w.Write(fields); err != nil {
		return err
	}
	if err := writeUint64(w, c.V1BodyOffset); err != nil {
		return err
	}
	return writeUint64(w, c.V1BodySize)
}

// ReadColumnConfig deserializes one ColumnConfig entry.
func ReadColumnConfig(r io.Reader) (ColumnConfig, error) {
	var c ColumnConfig
	var err error
	if c.ColumnID, err = readUint32(r); err != nil {
		return c, err
	}
	nameLen, err := readUint32(r)
	if err != nil {
		return c, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return c, err
	}
	c.Name = string(name)
	var fields [5]byte
	if _, err := io.ReadFull(r, fields[:]); err != nil {
		return c, err
	}
	c.LogicalType = LogicalType(fields[0])
	c.StorageType = StorageType(fields[1])
	c.RLevelMax = fields[2]
	c.DLevelMax = fields[3]
	c.ValueBits = fields[4]
	if c.V1BodyOffset, err = readUint64(r); err != nil {
		return c, err
	}
	if c.V1BodySize, err = readUint64(r); err != nil {
		return c, err
	}
	return c, nil
}

// WriteHeader serializes the file header, including the length-prefixed
// schema. The encoded header has no header_size field: neither this
// function nor its callers write one, and ReadHeader finds the end of the
// header from the schema's own column count.
func WriteHeader(w io.Writer, h Header) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeUint16(w, h.Version.Major); err != nil {
		return err
	}
	if err := writeUint16(w, h.Version.Minor); err != nil {
		return err
	}
	if err := writeUint32(w, h.Flags); err != nil {
		return err
	}
	if err := writeUint64(w, h.MetablockAOffset); err != nil {
		return err
	}
	if err := writeUint64(w, h.MetablockBOffset); err != nil {
		return err
	}
	if h.Version == VersionV1 {
		if err := writeUint64(w, h.V1NumRows); err != nil {
			return err
		}
	}
	if err := writeUint32(w, uint32(len(h.Schema))); err != nil {
		return err
	}
	for _, c := range h.Schema {
		if err := WriteColumnConfig(w, c); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeader parses the magic, version, flags, metablock pointers, and
// schema from the start of a file. It does not check the magic number;
// callers must do that since an unrecognized magic is a caller-visible
// FORMAT_ERROR, not a parse failure of this package.
func ReadHeader(r io.Reader) (Header, [4]byte, error) {
	var h Header
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return h, magic, err
	}
	var err error
	if h.Version.Major, err = readUint16(r); err != nil {
		return h, magic, err
	}
	if h.Version.Minor, err = readUint16(r); err != nil {
		return h, magic, err
	}
	if h.Flags, err = readUint32(r); err != nil {
		return h, magic, err
	}
	if h.MetablockAOffset, err = readUint64(r); err != nil {
		return h, magic, err
	}
	if h.MetablockBOffset, err = readUint64(r); err != nil {
		return h, magic, err
	}
	if h.Version == VersionV1 {
		if h.V1NumRows, err = readUint64(r); err != nil {
			return h, magic, err
		}
	}
	n, err := readUint32(r)
	if err != nil {
		return h, magic, err
	}
	h.Schema = make([]ColumnConfig, n)
	for i := range h.Schema {
		if h.Schema[i], err = ReadColumnConfig(r); err != nil {
			return h, magic, err
		}
	}
	return h, magic, nil
}

// WritePageIndex serializes the page index: a u32 count followed by that
// many fixed-size entries.
func WritePageIndex(w io.Writer, entries []PageIndexEntry) error {
	if err := writeUint32(w, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeUint32(w, e.Key.ColumnID); err != nil {
			return err
		}
		if _, err := w.Write([]byte{byte(e.Key.EntryType)}); err != nil {
			return err
		}
		if err := writeUint64(w, e.Offset); err != nil {
			return err
		}
		if err := writeUint32(w, e.Size); err != nil {
			return err
		}
		if err := writeUint32(w, e.Values); err != nil {
			return err
		}
	}
	return nil
}

// ReadPageIndex deserializes a page index written by WritePageIndex.
func ReadPageIndex(r io.Reader) ([]PageIndexEntry, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]PageIndexEntry, n)
	for i := range entries {
		e := &entries[i]
		if e.Key.ColumnID, err = readUint32(r); err != nil {
			return nil, err
		}
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		e.Key.EntryType = EntryType(b[0])
		if e.Offset, err = readUint64(r); err != nil {
			return nil, err
		}
		if e.Size, err = readUint32(r); err != nil {
			return nil, err
		}
		if e.Values, err = readUint32(r); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// WriteMetablock serializes a Metablock.
func WriteMetablock(w io.Writer, m Metablock) error {
	if err := writeUint64(w, m.TransactionID); err != nil {
		return err
	}
	if err := writeUint64(w, m.NumRows); err != nil {
		return err
	}
	if err := writeUint64(w, m.IndexOffset); err != nil {
		return err
	}
	if err := writeUint64(w, m.IndexSize); err != nil {
		return err
	}
	_, err := w.Write(m.Checksum[:])
	return err
}

// ReadMetablock deserializes a Metablock.
func ReadMetablock(r io.Reader) (Metablock, error) {
	var m Metablock
	var err error
	if m.TransactionID, err = readUint64(r); err != nil {
		return m, err
	}
	if m.NumRows, err = readUint64(r); err != nil {
		return m, err
	}
	if m.IndexOffset, err = readUint64(r); err != nil {
		return m, err
	}
	if m.IndexSize, err = readUint64(r); err != nil {
		return m, err
	}
	if _, err := io.ReadFull(r, m.Checksum[:]); err != nil {
		return m, err
	}
	return m, nil
}
