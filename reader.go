package cstable

import (
	"bytes"
	"io"
	"time"

	"github.com/cstablefmt/cstable-go/column"
	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

// TableReader opens a committed cstable file and hands out column readers.
// Per spec.md §5, a TableReader is safe for concurrent use by multiple
// goroutines only insofar as they each obtain their own private column
// reader via NewColumnReader; the shared reader returned by Column has a
// single cursor and callers must serialize access to it themselves.
type TableReader struct {
	schema  Schema
	numRows uint64
	pm      *pagemgr.Manager
	shared  map[string]*column.Reader
	storage io.ReaderAt
	v1      bool
}

// OpenFile opens a cstable file occupying the first limit bytes of
// storage. limit should be the file's actual size; pass the file size
// when opening from disk, or the arena's logical length when opening from
// an in-memory arena (spec.md §4.6).
func OpenFile(storage io.ReaderAt, limit int64, options ...ReaderOption) (*TableReader, error) {
	cfg := DefaultReaderConfig()
	cfg.Apply(options...)

	header, err := readFooter(storage, limit)
	if err != nil {
		return nil, err
	}

	switch header.Version {
	case format.VersionV2:
		return openV2(storage, header, cfg)
	case format.VersionV1:
		return openV1(storage, header, cfg)
	default:
		return nil, newErr(FormatError, "OpenFile", "unrecognized format version "+header.Version.String())
	}
}

func openV2(storage io.ReaderAt, header format.Header, cfg *ReaderConfig) (*TableReader, error) {
	mb, err := pickMetablock(storage, header)
	if err != nil {
		return nil, err
	}
	indexBytes := make([]byte, mb.IndexSize)
	if _, err := storage.ReadAt(indexBytes, int64(mb.IndexOffset)); err != nil {
		return nil, wrapErr(FormatError, "OpenFile", err)
	}
	entries, err := format.ReadPageIndex(bytes.NewReader(indexBytes))
	if err != nil {
		return nil, wrapErr(FormatError, "OpenFile", err)
	}
	pm := pagemgr.NewReadOnly(storage, entries)

	readers, err := columnReaders(header.Schema, pm)
	if err != nil {
		return nil, err
	}

	numRows := mb.NumRows
	if cfg.MaxRows > 0 && cfg.MaxRows < numRows {
		numRows = cfg.MaxRows
	}

	return &TableReader{
		schema:  header.Schema,
		numRows: numRows,
		pm:      pm,
		shared:  readers,
		storage: storage,
	}, nil
}

// Schema returns the column configurations of the open file.
func (r *TableReader) Schema() Schema { return r.schema }

// NumRows returns the committed row count, capped by ReaderConfig.MaxRows.
func (r *TableReader) NumRows() uint64 { return r.numRows }

// Column returns the shared column reader for name: one cursor, reused
// across every caller that asks for this column.
func (r *TableReader) Column(name string) (*column.Reader, error) {
	cr, ok := r.shared[name]
	if !ok {
		return nil, newErr(NotFound, "TableReader.Column", "no such column: "+name)
	}
	return cr, nil
}

// NewColumnReader returns a private column reader for name: an
// independent cursor and decoder state, safe to use concurrently with any
// other reader of the same column (spec.md §4.4).
func (r *TableReader) NewColumnReader(name string) (*column.Reader, error) {
	for _, c := range r.schema {
		if c.Name == name {
			cr, err := column.NewReader(c, r.pm)
			if err != nil {
				return nil, wrapErr(UnsupportedEncoding, "TableReader.NewColumnReader", err)
			}
			return cr, nil
		}
	}
	return nil, newErr(NotFound, "TableReader.NewColumnReader", "no such column: "+name)
}

// PageIndex returns the full set of page index entries backing this file,
// for debugging/introspection tools.
func (r *TableReader) PageIndex() []format.PageIndexEntry { return r.pm.Snapshot() }

// Close releases the reader. It is a no-op on storage that does not
// implement io.Closer.
func (r *TableReader) Close() error {
	if c, ok := r.storage.(closer); ok {
		return wrapErr(IOError, "TableReader.Close", c.Close())
	}
	return nil
}

// CopyTo streams every triple of the named columns from r into target,
// applying mask per outer record: when mask returns false for a record
// whose column value is present, CopyTo still writes the triple's rlvl and
// dlvl (preserving the structure ancestors still materialized depend on)
// but substitutes a redacted zero value in place of the original, per
// spec.md §4.6's copyTo contract.
func (r *TableReader) CopyTo(target *TableWriter, columnNames []string, mask func(record int) bool) error {
	for _, name := range columnNames {
		src, err := r.NewColumnReader(name)
		if err != nil {
			return err
		}
		dst, err := target.Column(name)
		if err != nil {
			return err
		}
		if err := copyColumn(src, dst, mask); err != nil {
			return err
		}
	}
	return nil
}

func copyColumn(src *column.Reader, dst *column.Writer, mask func(record int) bool) error {
	record := -1
	for {
		rlvl, dlvl, value, ok, err := src.Next()
		if err != nil {
			return wrapErr(DecodeError, "copyColumn", err)
		}
		if !ok {
			return nil
		}
		if rlvl == 0 {
			record++
		}
		keep := mask == nil || mask(record)
		if err := writeTriple(dst, rlvl, dlvl, value, keep); err != nil {
			return wrapErr(IOError, "copyColumn", err)
		}
	}
}

func writeTriple(dst *column.Writer, rlvl, dlvl uint8, value interface{}, keep bool) error {
	if value == nil {
		return dst.WriteNull(rlvl, dlvl)
	}
	if !keep {
		value = zeroValueFor(dst.Config().LogicalType)
	}
	switch v := value.(type) {
	case bool:
		return dst.WriteBoolean(rlvl, dlvl, v)
	case uint64:
		return dst.WriteUnsignedInt(rlvl, dlvl, v)
	case int64:
		return dst.WriteSignedInt(rlvl, dlvl, v)
	case float64:
		return dst.WriteFloat(rlvl, dlvl, v)
	case string:
		return dst.WriteString(rlvl, dlvl, v)
	case time.Time:
		return dst.WriteDateTime(rlvl, dlvl, v)
	default:
		return newErr(ArgumentError, "writeTriple", "unsupported decoded value type")
	}
}

func zeroValueFor(t format.LogicalType) interface{} {
	switch t {
	case format.BOOLEAN:
		return false
	case format.UNSIGNED_INT:
		return uint64(0)
	case format.SIGNED_INT:
		return int64(0)
	case format.FLOAT:
		return float64(0)
	case format.STRING:
		return ""
	case format.DATETIME:
		return time.Time{}
	default:
		return ""
	}
}
